package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/violation-service/internal/api/http/handlers"
	"github.com/spec-kit/violation-service/internal/auth"
	"github.com/spec-kit/violation-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Appeals        *handlers.AppealsHandler
	Audit          *handlers.AuditHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)

	authProtected := authGroup.Group("", cfg.AuthMiddleware.Handle)
	authProtected.Post("/logout", cfg.Auth.Logout)
	authProtected.Get("/me", cfg.Auth.Me)
	authProtected.Post("/register", auth.RequireRole(domain.UserRoleAdmin), cfg.Auth.Register)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/transition", auth.RequireRole(domain.UserRoleAdmin, domain.UserRoleManager), cfg.Tickets.TransitionTicket)
	tickets.Post("/:id/cancel", auth.RequireRole(domain.UserRoleAdmin, domain.UserRoleManager), cfg.Tickets.CancelTicket)
	tickets.Get("/:id/next-statuses", cfg.Tickets.NextStatuses)
	tickets.Get("/:id/transitions", cfg.Tickets.TransitionHistory)
	tickets.Get("/:id/integration-attempts", cfg.Tickets.IntegrationAttempts)

	tickets.Post("/:id/appeals", cfg.Appeals.FileAppeal)
	tickets.Get("/:id/appeals", cfg.Appeals.ListAppeals)

	appeals := app.Group("/appeals", cfg.AuthMiddleware.Handle)
	appeals.Post("/:id/judge", auth.RequireRole(domain.UserRoleAdmin, domain.UserRoleManager), cfg.Appeals.JudgeAppeal)

	audit := app.Group("/audit-events", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.UserRoleAdmin, domain.UserRoleManager))
	audit.Get("", cfg.Audit.ListEvents)
}
