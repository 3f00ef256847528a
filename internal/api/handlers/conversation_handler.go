package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/docqa/backend/internal/conversation"
)

type ConversationHandler struct {
	store *conversation.Store
}

func NewConversationHandler(store *conversation.Store) *ConversationHandler {
	return &ConversationHandler{store: store}
}

func (h *ConversationHandler) CreateConversation(c *fiber.Ctx) error {
	var req struct {
		Title string `json:"title"`
	}
	// An empty body is fine, the title is optional.
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}

	conv, err := h.store.Create(req.Title)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(conv)
}

func (h *ConversationHandler) ListConversations(c *fiber.Ctx) error {
	metas, err := h.store.List()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"conversations": metas,
		"total":         len(metas),
	})
}

func (h *ConversationHandler) GetConversation(c *fiber.Ctx) error {
	conv, err := h.store.Get(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	if conv == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Conversation not found",
		})
	}
	return c.JSON(conv)
}

func (h *ConversationHandler) DeleteConversation(c *fiber.Ctx) error {
	deleted, err := h.store.Delete(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Conversation not found",
		})
	}
	return c.JSON(fiber.Map{
		"message": "Conversation deleted",
	})
}

func (h *ConversationHandler) ExportConversation(c *fiber.Ctx) error {
	format := c.Query("format", "json")
	if format != "json" && format != "markdown" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Format must be 'json' or 'markdown'",
		})
	}

	data, err := h.store.Export(c.Params("id"), format)
	if err != nil {
		return fail(c, err)
	}
	if data == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Conversation not found",
		})
	}

	if format == "markdown" {
		c.Set(fiber.HeaderContentType, "text/markdown; charset=utf-8")
	} else {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	}
	return c.Send(data)
}
