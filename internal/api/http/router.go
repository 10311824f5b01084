package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/marketplace-chat/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-chat/internal/auth"
	"github.com/spec-kit/marketplace-chat/internal/domain"
	"github.com/spec-kit/marketplace-chat/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Rooms          *handlers.ChatRoomsHandler
	Messages       *handlers.ChatMessagesHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	chat := app.Group("/chat", cfg.AuthMiddleware.Handle)
	chat.Get("/summary", cfg.Rooms.Summary)

	rooms := chat.Group("/rooms")
	rooms.Post("/", cfg.Rooms.CreateRoom)
	rooms.Get("/", cfg.Rooms.ListRooms)
	rooms.Get("/:id", cfg.Rooms.GetRoom)
	rooms.Post("/:id/close", auth.RequireRole(domain.RoleAdmin), cfg.Rooms.CloseRoom)
	rooms.Get("/:id/unread", cfg.Rooms.UnreadCount)
	rooms.Get("/:id/pinned", cfg.Rooms.ListPinned)
	rooms.Get("/:id/messages", cfg.Messages.ListMessages)
	rooms.Post("/:id/messages", cfg.Messages.SendMessage)
	rooms.Post("/:id/read", cfg.Messages.MarkRead)

	messages := chat.Group("/messages")
	messages.Patch("/:id", cfg.Messages.EditMessage)
	messages.Delete("/:id", cfg.Messages.DeleteMessage)
	messages.Post("/:id/pin", cfg.Messages.PinMessage)
	messages.Delete("/:id/pin", cfg.Messages.UnpinMessage)
}
