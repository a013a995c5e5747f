package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/authz"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Users          *handlers.UsersHandler
	Notifications  *handlers.NotificationsHandler
	Dashboard      *handlers.DashboardHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	api := app.Group("/api", cfg.AuthMiddleware.Handle)

	tickets := api.Group("/tickets")
	tickets.Get("", cfg.Tickets.List)
	tickets.Post("", cfg.Tickets.Create)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Patch("/:id", cfg.Tickets.Update)
	tickets.Delete("/:id", auth.RequireOperation(authz.OpTicketDelete), cfg.Tickets.Delete)
	tickets.Post("/:id/forward", auth.RequireOperation(authz.OpTicketAssign), cfg.Tickets.Forward)
	tickets.Post("/:id/respond", cfg.Tickets.Respond)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Post("/:id/attachments", cfg.Tickets.AddAttachment)

	users := api.Group("/users")
	users.Get("", auth.RequireOperation(authz.OpUserManage), cfg.Users.List)
	users.Post("", auth.RequireOperation(authz.OpUserManage), cfg.Users.Create)
	users.Get("/directory", auth.RequireOperation(authz.OpUserDirectory), cfg.Users.Directory)
	users.Patch("/:id", auth.RequireOperation(authz.OpUserManage), cfg.Users.Update)
	users.Delete("/:id", auth.RequireOperation(authz.OpUserDeactivate), cfg.Users.Deactivate)

	notifications := api.Group("/notifications")
	notifications.Get("", cfg.Notifications.List)
	notifications.Patch("/:id/read", cfg.Notifications.MarkRead)
	notifications.Post("/read-all", cfg.Notifications.MarkAllRead)

	api.Post("/announcements", auth.RequireOperation(authz.OpBroadcast), cfg.Notifications.Broadcast)

	api.Get("/dashboard/stats", cfg.Dashboard.Stats)
}
