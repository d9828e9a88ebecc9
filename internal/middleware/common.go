package middleware

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

// Config customises the middleware registration pipeline.
type Config struct {
	Logger *zerolog.Logger
	// AllowOrigins is the CORS origin list; empty means "*".
	AllowOrigins string
	// ConsoleLog adds fiber's plain-text access log, handy during development.
	ConsoleLog bool
}

// Register attaches the middlewares shared by every route, in order: panic recovery,
// correlation ids, metrics and structured access logs, then CORS.
func Register(app *fiber.App, cfg Config) {
	requestLogger := zerolog.New(io.Discard)
	if cfg.Logger != nil {
		requestLogger = *cfg.Logger
	}
	origins := cfg.AllowOrigins
	if origins == "" {
		origins = "*"
	}

	app.Use(recover.New(recover.Config{EnableStackTrace: cfg.ConsoleLog}))
	app.Use(CorrelationID())
	app.Use(Observability(requestLogger.With().Str("component", "http").Logger()))
	if cfg.ConsoleLog {
		app.Use(logger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, " + ModuleTokenHeader + ", " + CorrelationHeader,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		ExposeHeaders:    CorrelationHeader,
		AllowCredentials: origins != "*",
	}))
}
