package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/docqa/backend/internal/conversation"
	"github.com/docqa/backend/internal/query"
	"github.com/docqa/backend/internal/storage/models"
	"github.com/docqa/backend/pkg/logger"
)

type WebSocketHandler struct {
	engine        *query.Engine
	conversations *conversation.Store
}

func NewWebSocketHandler(engine *query.Engine, conversations *conversation.Store) *WebSocketHandler {
	return &WebSocketHandler{
		engine:        engine,
		conversations: conversations,
	}
}

// HandleConnection serves one chat socket: the client sends query frames,
// the server streams the answer back word by word and finishes each answer
// with a complete frame carrying the sources.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type           string `json:"type"`
			Question       string `json:"question"`
			K              int    `json:"k"`
			ConversationID string `json:"conversation_id"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			break
		}
		if msg.Type != "query" {
			continue
		}

		if err := h.streamAnswer(c, msg.Question, msg.K, msg.ConversationID); err != nil {
			logger.Error("Failed to stream answer", zap.Error(err))
			h.sendError(c, "Failed to process query")
		}
	}
}

func (h *WebSocketHandler) streamAnswer(c *websocket.Conn, question string, k int, conversationID string) error {
	h.sendChunk(c, "status", "Processing query...")

	answer, err := h.engine.Answer(context.Background(), question, k)
	if err != nil {
		return err
	}

	words := splitIntoWords(answer.Answer)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}
		if err := h.sendChunk(c, "chunk", chunk); err != nil {
			return err
		}
	}

	if conversationID != "" {
		h.record(conversationID, question, answer)
	}

	return c.WriteJSON(map[string]interface{}{
		"type":         "complete",
		"sources":      answer.Sources,
		"context_only": answer.ContextOnly,
	})
}

func (h *WebSocketHandler) record(conversationID, question string, answer *query.Answer) {
	filenames := make([]string, len(answer.Sources))
	for i, src := range answer.Sources {
		filenames[i] = src.Filename
	}
	if _, err := h.conversations.AppendMessage(conversationID, models.RoleUser, question, nil); err != nil {
		logger.Warn("Failed to record user message", zap.Error(err))
		return
	}
	if _, err := h.conversations.AppendMessage(conversationID, models.RoleAssistant, answer.Answer, filenames); err != nil {
		logger.Warn("Failed to record assistant message", zap.Error(err))
	}
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}

func splitIntoWords(text string) []string {
	words := []string{}
	currentWord := ""

	for _, char := range text {
		if char == ' ' || char == '\n' {
			if currentWord != "" {
				words = append(words, currentWord)
				currentWord = ""
			}
			if char == '\n' {
				words = append(words, "\n")
			}
		} else {
			currentWord += string(char)
		}
	}

	if currentWord != "" {
		words = append(words, currentWord)
	}

	return words
}
