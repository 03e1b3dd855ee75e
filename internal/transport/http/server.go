// Package http provides the HTTP server implementation for the kaiwa service.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/kaiwa-dev/kaiwa/internal/service"
	v1 "github.com/kaiwa-dev/kaiwa/internal/transport/http/v1"
	"github.com/kaiwa-dev/kaiwa/internal/transport/ws"
)

// NewServer creates and configures the HTTP server. It serves the v1 REST
// API and the conversation WebSocket endpoint.
func NewServer(svc *service.Service, wsServer *ws.Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc)
	v1Handler.RegisterRoutes(e)

	e.GET("/ws", wsServer.HandleWebSocket)

	return e
}
