package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/interfix/helpdesk/internal/api/http/handlers"
	"github.com/interfix/helpdesk/internal/auth"
	"github.com/interfix/helpdesk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Contestations  *handlers.ContestationsHandler
	Wizard         *handlers.WizardHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	api := app.Group("/api")
	api.Post("/auth/login", cfg.Users.Login)

	protected := api.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	protected.Get("/auth/me", cfg.Users.Me)
	protected.Get("/users/by-email", cfg.Users.ByEmail)

	wizard := protected.Group("/wizard/sessions")
	wizard.Post("/", cfg.Wizard.Start)
	wizard.Get("/:sid", cfg.Wizard.Summary)
	wizard.Delete("/:sid", cfg.Wizard.Abandon)
	wizard.Get("/:sid/stages/:stage", cfg.Wizard.Enter)
	wizard.Post("/:sid/basic-info", cfg.Wizard.SubmitBasicInfo)
	wizard.Post("/:sid/affected-scope", cfg.Wizard.SubmitAffectedScope)
	wizard.Post("/:sid/blocking-impact", cfg.Wizard.SubmitBlockingImpact)
	wizard.Post("/:sid/analyze", cfg.Wizard.Analyze)
	wizard.Post("/:sid/accept", cfg.Wizard.Accept)
	wizard.Post("/:sid/contest", cfg.Wizard.Contest)
	wizard.Post("/:sid/commit", cfg.Wizard.Commit)

	tickets := protected.Group("/tickets")
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/stats/summary", cfg.Tickets.Stats)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/history", cfg.Tickets.History)
	tickets.Put("/:id", cfg.Tickets.UpdateTicket)
	tickets.Patch("/:id/status", auth.RequireRole(domain.UserRoleTechnician, domain.UserRoleAdmin), cfg.Tickets.UpdateStatus)

	contestations := protected.Group("/contestations")
	contestations.Get("/", cfg.Contestations.List)
	contestations.Post("/", cfg.Contestations.Create)
	contestations.Get("/ticket/:ticketID", cfg.Contestations.ListByTicket)
	contestations.Get("/:id", cfg.Contestations.Get)
	contestations.Put("/:id", cfg.Contestations.Update)
	contestations.Delete("/:id", cfg.Contestations.Delete)
}
