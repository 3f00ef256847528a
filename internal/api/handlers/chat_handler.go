package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/docqa/backend/internal/conversation"
	"github.com/docqa/backend/internal/query"
	"github.com/docqa/backend/internal/storage/models"
	"github.com/docqa/backend/pkg/logger"
)

type ChatHandler struct {
	engine        *query.Engine
	conversations *conversation.Store
}

func NewChatHandler(engine *query.Engine, conversations *conversation.Store) *ChatHandler {
	return &ChatHandler{
		engine:        engine,
		conversations: conversations,
	}
}

type chatQueryRequest struct {
	Question       string `json:"question"`
	K              int    `json:"k"`
	ConversationID string `json:"conversation_id"`
}

// HandleQuery answers one question. When a conversation id is given, the
// question and answer are appended to that conversation as a side effect.
func (h *ChatHandler) HandleQuery(c *fiber.Ctx) error {
	var req chatQueryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question is required",
		})
	}
	if req.K < 0 || req.K > h.engine.MaxK() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "k must be between 1 and " + strconv.Itoa(h.engine.MaxK()),
		})
	}

	if req.ConversationID != "" {
		conv, err := h.conversations.Get(req.ConversationID)
		if err != nil {
			return fail(c, err)
		}
		if conv == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Conversation not found",
			})
		}
	}

	answer, err := h.engine.Answer(c.Context(), req.Question, req.K)
	if err != nil {
		return fail(c, err)
	}

	if req.ConversationID != "" {
		filenames := make([]string, len(answer.Sources))
		for i, src := range answer.Sources {
			filenames[i] = src.Filename
		}
		if _, err := h.conversations.AppendMessage(req.ConversationID, models.RoleUser, req.Question, nil); err != nil {
			logger.Warn("Failed to record user message", zap.Error(err))
		} else if _, err := h.conversations.AppendMessage(req.ConversationID, models.RoleAssistant, answer.Answer, filenames); err != nil {
			logger.Warn("Failed to record assistant message", zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{
		"answer":          answer.Answer,
		"sources":         answer.Sources,
		"context_only":    answer.ContextOnly,
		"conversation_id": req.ConversationID,
	})
}
