package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/clinic-crm/internal/api/http/handlers"
	"github.com/spec-kit/clinic-crm/internal/auth"
	"github.com/spec-kit/clinic-crm/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health       *handlers.HealthHandler
	Auth         *handlers.AuthHandler
	Pharmacy     *handlers.PharmacyHandler
	Appointments *handlers.AppointmentHandler
	Incentives   *handlers.IncentiveHandler
	Gate         *auth.TokenGate
	Guard        *auth.Guard
	Permissions  *auth.PermissionEvaluator
	Throttle     fiber.Handler
	Metrics      *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	throttle := cfg.Throttle
	if throttle == nil {
		throttle = func(c *fiber.Ctx) error { return c.Next() }
	}

	api := app.Group("/api")
	api.Post("/register", throttle, cfg.Auth.Register)
	api.Post("/login", throttle, cfg.Auth.Login)

	protected := api.Group("", cfg.Gate.Handle, cfg.Guard.Handle, auth.RequireAnyRole())
	protected.Post("/logout", cfg.Auth.Logout)
	protected.Post("/refresh", cfg.Auth.Refresh)
	protected.Get("/me", cfg.Auth.Me)

	perm := cfg.Permissions.Require
	write := auth.RequireAbility(auth.AbilityRecordsWrite)

	pharmacy := protected.Group("/pharmacy")
	pharmacy.Get("/", perm("pharmacy.view|pharmacy.manage,pharmacy"), cfg.Pharmacy.List)
	pharmacy.Post("/", write, perm("pharmacy.create|pharmacy.manage,pharmacy"), cfg.Pharmacy.Create)
	pharmacy.Get("/:id", perm("pharmacy.view|pharmacy.manage,pharmacy"), cfg.Pharmacy.Get)
	pharmacy.Put("/:id", write, perm("pharmacy.update|pharmacy.manage,pharmacy"), cfg.Pharmacy.Update)
	pharmacy.Delete("/:id", write, perm("pharmacy.delete|pharmacy.manage,pharmacy"), cfg.Pharmacy.Delete)

	appointments := protected.Group("/appointments")
	appointments.Get("/", perm("appointments.view|appointments.manage,appointments"), cfg.Appointments.List)
	appointments.Post("/", write, perm("appointments.create|appointments.manage,appointments"), cfg.Appointments.Create)
	appointments.Get("/:id", perm("appointments.view|appointments.manage,appointments"), cfg.Appointments.Get)
	appointments.Put("/:id", write, perm("appointments.update|appointments.manage,appointments"), cfg.Appointments.Update)
	appointments.Delete("/:id", write, perm("appointments.delete|appointments.manage,appointments"), cfg.Appointments.Delete)

	protected.Get("/incentives/:source/:id", perm("incentives.view"), cfg.Incentives.BySource)
}
