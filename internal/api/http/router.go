package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/walkup-queue/internal/api/http/handlers"
	"github.com/spec-kit/walkup-queue/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Display        *handlers.DisplayHandler
	Identities     *handlers.IdentityHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Every desk route declares the capability it needs.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Get)

	app.Get("/ws/queue", cfg.Display.Upgrade, cfg.Display.Stream())

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)

	// Kiosk name confirmation.
	api.Get("/identities/:id", cfg.Identities.Get)

	tickets := api.Group("/tickets")
	// Kiosk and public display.
	tickets.Post("/", cfg.Tickets.Submit)
	tickets.Get("/waiting", cfg.Tickets.Waiting)
	tickets.Get("/in-progress", cfg.Tickets.InProgress)

	authed := cfg.AuthMiddleware.Handle
	tickets.Get("/mine", authed, auth.Require(auth.CapabilityServe), cfg.Tickets.Mine)
	tickets.Get("/search", authed, auth.Require(auth.CapabilityReport), cfg.Tickets.Search)
	tickets.Get("/history/:requesterId", authed, auth.Require(auth.CapabilityReport), cfg.Tickets.History)
	tickets.Get("/summary/:requesterId", authed, auth.Require(auth.CapabilityReport), cfg.Tickets.Summary)
	tickets.Post("/import", authed, auth.Require(auth.CapabilityImport), cfg.Tickets.Import)
	tickets.Post("/:id/start", authed, auth.Require(auth.CapabilityServe), cfg.Tickets.Start)
	tickets.Post("/:id/close", authed, auth.Require(auth.CapabilityServe), cfg.Tickets.Close)
	tickets.Post("/:id/cancel", authed, auth.Require(auth.CapabilityServe), cfg.Tickets.Cancel)
	tickets.Put("/:id", authed, auth.Require(auth.CapabilityCorrect), cfg.Tickets.Edit)
}
