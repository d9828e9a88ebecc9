package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gestion-educativa-api/internal/config"
	"github.com/noah-isme/gestion-educativa-api/internal/handler"
	"github.com/noah-isme/gestion-educativa-api/internal/middleware"
	"github.com/noah-isme/gestion-educativa-api/internal/observability"
	"github.com/noah-isme/gestion-educativa-api/internal/service"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	PageHandler       *handler.PageHandler
	RPCHandler        *handler.RPCHandler
	DocumentHandler   *handler.DocumentHandler
	AttendanceHandler *handler.AttendanceHandler
	HealthProbes      map[string]handler.HealthProbe
	Sessions          service.SessionStore
	ModuleTokens      service.ModuleTokenService
	LoginLimiter      fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	// Everything registered below sees the client scope and current session.
	app.Use(middleware.LoadSession(deps.Sessions, middleware.SessionOptions{
		Secure: cfg.AppEnv == "production",
	}))

	if deps.PageHandler != nil {
		deps.PageHandler.Register(app)
	}

	if deps.RPCHandler != nil {
		deps.RPCHandler.Register(api.Group("/rpc"), deps.LoginLimiter)
	}

	if deps.DocumentHandler != nil {
		documents := api.Group("/documents", middleware.RequireSession())
		deps.DocumentHandler.Register(documents)
	}

	if deps.AttendanceHandler != nil {
		attendance := api.Group("/attendance",
			middleware.RequireSession(),
			middleware.RequireModuleToken(deps.ModuleTokens, service.ModuleAttendance),
		)
		deps.AttendanceHandler.Register(attendance)
	}
}
