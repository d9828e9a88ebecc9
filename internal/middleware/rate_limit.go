package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/gestion-educativa-api/internal/utils"
)

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	// Name namespaces the counters so several limiters can share a client IP.
	Name   string
	Max    int
	Window time.Duration
	// FailuresOnly counts only responses with status >= 400.
	FailuresOnly bool
}

// RateLimit throttles requests per client IP.
func RateLimit(cfg RateLimitConfig) fiber.Handler {
	if cfg.Max <= 0 {
		cfg.Max = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:                    cfg.Max,
		Expiration:             cfg.Window,
		SkipSuccessfulRequests: cfg.FailuresOnly,
		KeyGenerator: func(c *fiber.Ctx) string {
			return cfg.Name + ":" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.SendError(c, fiber.StatusTooManyRequests, "Demasiados intentos. Intente de nuevo más tarde.")
		},
	})
}
