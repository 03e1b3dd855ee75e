package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/kaiwa-dev/kaiwa/internal/domain"
	"github.com/kaiwa-dev/kaiwa/internal/service"
)

// CreateUtteranceRequest is the body of POST /v1/conversations/:conversation_id/utterances.
type CreateUtteranceRequest struct {
	Speaker string `json:"speaker"`
	Content string `json:"content"`
}

// GetConversation retrieves a conversation with its transcript.
// GET /v1/conversations/:conversation_id
func (h *Handler) GetConversation(c echo.Context) error {
	conversationID := c.Param("conversation_id")

	conv, transcript, err := h.service.GetConversation(c.Request().Context(), conversationID)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversation": conv,
		"transcript":   transcript,
	})
}

// ListConversations lists a user's conversations, newest first.
// GET /v1/users/:user_id/conversations
func (h *Handler) ListConversations(c echo.Context) error {
	userID := c.Param("user_id")
	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}

	convs, err := h.service.ListConversations(c.Request().Context(), userID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversations": convs,
	})
}

// CreateUtterance appends an utterance to a conversation transcript.
// POST /v1/conversations/:conversation_id/utterances
func (h *Handler) CreateUtterance(c echo.Context) error {
	conversationID := c.Param("conversation_id")

	var req CreateUtteranceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Content == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "content is required"})
	}
	speaker := domain.Speaker(req.Speaker)
	if speaker != domain.SpeakerUser && speaker != domain.SpeakerAssistant {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "speaker must be user or assistant"})
	}

	utt, err := h.service.RecordUtterance(c.Request().Context(), conversationID, speaker, req.Content)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, utt)
}
