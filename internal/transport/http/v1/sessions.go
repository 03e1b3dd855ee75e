package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kaiwa-dev/kaiwa/internal/service"
)

// StartSessionRequest is the body of POST /v1/sessions.
type StartSessionRequest struct {
	UserID   string `json:"user_id"`
	Category string `json:"category,omitempty"`
}

// GetQuota reports the user's current session quota.
// GET /v1/users/:user_id/quota
func (h *Handler) GetQuota(c echo.Context) error {
	userID := c.Param("user_id")
	q := h.service.EvaluateQuota(c.Request().Context(), userID)
	return c.JSON(http.StatusOK, q)
}

// StartSession admits a new session.
// POST /v1/sessions
func (h *Handler) StartSession(c echo.Context) error {
	var req StartSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id is required"})
	}

	grant, err := h.service.StartSession(c.Request().Context(), req.UserID, req.Category, nil)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuotaExceeded):
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrUserBlocked):
			return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}
	return c.JSON(http.StatusCreated, grant)
}

// EndSession ends a session. Ending an unknown key succeeds; the close path
// is idempotent.
// DELETE /v1/sessions/:session_key
func (h *Handler) EndSession(c echo.Context) error {
	sessionKey := c.Param("session_key")
	conversationID := c.QueryParam("conversation_id")

	if err := h.service.EndSession(c.Request().Context(), sessionKey, conversationID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}
