// Package v1 provides HTTP handlers for the kaiwa service.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kaiwa-dev/kaiwa/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Quota API
	e.GET("/v1/users/:user_id/quota", h.GetQuota)

	// Session API
	e.POST("/v1/sessions", h.StartSession)
	e.DELETE("/v1/sessions/:session_key", h.EndSession)

	// Conversation API
	e.GET("/v1/conversations/:conversation_id", h.GetConversation)
	e.GET("/v1/users/:user_id/conversations", h.ListConversations)
	e.POST("/v1/conversations/:conversation_id/utterances", h.CreateUtterance)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
