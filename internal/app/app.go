// Package app assembles the HTTP application from its collaborators.
package app

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/clinic-crm/internal/api/http"
	"github.com/spec-kit/clinic-crm/internal/api/http/handlers"
	"github.com/spec-kit/clinic-crm/internal/auth"
	"github.com/spec-kit/clinic-crm/internal/config"
	"github.com/spec-kit/clinic-crm/internal/events"
	"github.com/spec-kit/clinic-crm/internal/incentive"
	"github.com/spec-kit/clinic-crm/internal/observability"
	"github.com/spec-kit/clinic-crm/internal/persistence"
	"github.com/spec-kit/clinic-crm/internal/repository"
	"github.com/spec-kit/clinic-crm/internal/service"
	"github.com/spec-kit/clinic-crm/internal/session"
	"github.com/spec-kit/clinic-crm/internal/worker"
)

// Dependencies are the infrastructure handles the application runs on.
type Dependencies struct {
	Backend  repository.Backend
	Postgres *persistence.Postgres
	Redis    *persistence.Redis
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}

// New wires services, middleware and routes into a fiber app.
func New(cfg *config.Config, deps Dependencies) *fiber.App {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	sessions := session.NewStore(deps.Redis.Client, cfg.Auth.SessionTTL())
	codec := session.NewCodec(cfg.Auth.AppKey)
	generator := auth.NewTokenGenerator()

	permissions := auth.NewCachedPermissionSource(deps.Backend.Permissions(),
		cfg.Auth.PermissionCacheSize, cfg.Auth.PermissionCacheTTL())
	evaluator := auth.NewPermissionEvaluator(permissions, logger, deps.Metrics)

	sessionCookie := &auth.SessionCookie{
		Name:   cfg.Auth.SessionCookieName,
		TTL:    cfg.Auth.SessionTTL(),
		Secure: cfg.App.Env == "production",
		Codec:  codec,
	}
	gate := auth.NewTokenGate(cfg.Auth.SessionCookieName, deps.Metrics)
	guard := auth.NewGuard(auth.GuardConfig{
		Identities: deps.Backend.Identities(),
		Tokens:     deps.Backend.Tokens(),
		Sessions:   sessions,
		Codec:      codec,
		Generator:  generator,
		CookieName: cfg.Auth.SessionCookieName,
		Cookie:     sessionCookie,
		LoginPath:  cfg.Auth.LoginRoute,
		Logger:     logger,
		Metrics:    deps.Metrics,
	})
	lifecycle := auth.NewLifecycle(auth.LifecycleConfig{
		Tx:        deps.Backend,
		Sessions:  sessions,
		Generator: generator,
		LoginTTL:  cfg.Auth.LoginTokenTTL(),
		Logger:    logger,
	})

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Backend:    deps.Backend,
		Lifecycle:  lifecycle,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	recordDeps := service.RecordDependencies{
		Backend:    deps.Backend,
		Engine:     incentive.NewEngine(cfg.Incentive.Percentage),
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    deps.Metrics,
	}

	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))
	worker.StartPermissionCacheWorker(dispatcher, permissions)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler,
	})
	httptransport.RegisterMiddlewares(app, logger, deps.Metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:       handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps.Postgres, deps.Redis),
		Auth:         handlers.NewAuthHandler(authService, sessionCookie, logger),
		Pharmacy:     handlers.NewPharmacyHandler(service.NewPharmacyService(recordDeps)),
		Appointments: handlers.NewAppointmentHandler(service.NewAppointmentService(recordDeps)),
		Incentives:   handlers.NewIncentiveHandler(service.NewIncentiveService(deps.Backend)),
		Gate:         gate,
		Guard:        guard,
		Permissions:  evaluator,
		Throttle:     httptransport.Throttle(cfg.Auth.LoginAttemptsPerMinute, cfg.Auth.LoginBurst),
		Metrics:      deps.Metrics,
	})
	return app
}
