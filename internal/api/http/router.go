package http

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/supportdesk-io/supportdesk/internal/api/http/handlers"
	"github.com/supportdesk-io/supportdesk/internal/auth"
	"github.com/supportdesk-io/supportdesk/internal/domain"
	"github.com/supportdesk-io/supportdesk/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Comments       *handlers.CommentsHandler
	Sessions       *handlers.SessionsHandler
	Chat           *handlers.ChatHandler
	Activities     *handlers.ActivitiesHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/agents", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin), cfg.Auth.CreateStaff)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireRole())
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id/status", auth.RequireStaff(), cfg.Tickets.UpdateStatus)
	tickets.Patch("/:id/assignee", auth.RequireStaff(), cfg.Tickets.UpdateAssignee)

	comments := app.Group("/comments", cfg.AuthMiddleware.Handle, auth.RequireRole())
	comments.Post("", cfg.Comments.CreateComment)
	comments.Get("/ticket/:ticketId", cfg.Comments.ListByTicket)

	sessions := app.Group("/sessions", cfg.AuthMiddleware.Handle, auth.RequireStaff())
	sessions.Post("/start", cfg.Sessions.StartSession)
	sessions.Post("/end/:sessionId", cfg.Sessions.EndSession)
	sessions.Get("/current", cfg.Sessions.Current)
	sessions.Get("/presence/:agentId", cfg.Sessions.Presence)

	// The widget serves anonymous visitors too; ownership rules live in
	// the chat service.
	chat := app.Group("/chat", cfg.AuthMiddleware.Optional)
	chat.Post("", cfg.Chat.Send)
	chat.Get("/sessions/:id", cfg.Chat.GetSession)
	chat.Post("/sessions/:id/feedback", cfg.Chat.Feedback)
	chat.Post("/sessions/:id/regenerate", cfg.Chat.Regenerate)
	chat.Post("/sessions/:id/end", cfg.Chat.End)
	chat.Post("/sessions/:id/escalate", cfg.Chat.Escalate)

	activities := app.Group("/activities", cfg.AuthMiddleware.Handle, auth.RequireStaff())
	activities.Get("/ticket/:ticketId", cfg.Activities.ListByTicket)
}
