package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/docqa/backend/internal/catalog"
	"github.com/docqa/backend/internal/conversation"
	"github.com/docqa/backend/internal/vector"
)

type HealthHandler struct {
	version       string
	catalog       *catalog.Catalog
	index         *vector.Manager
	conversations *conversation.Store
}

func NewHealthHandler(version string, cat *catalog.Catalog, index *vector.Manager, conversations *conversation.Store) *HealthHandler {
	return &HealthHandler{
		version:       version,
		catalog:       cat,
		index:         index,
		conversations: conversations,
	}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":             "healthy",
		"version":            h.version,
		"time":               time.Now().Unix(),
		"document_count":     h.catalog.Count(),
		"conversation_count": h.conversations.Count(),
		"index_entries":      h.index.Count(),
		"index_ready":        h.index.Ready(),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ready",
	})
}
