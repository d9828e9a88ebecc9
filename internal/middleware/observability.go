package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gestion-educativa-api/internal/observability"
)

// Paths excluded from request metrics and access logs.
var unobservedPrefixes = []string{"/metrics", "/api/v1/health"}

// Observability counts requests per route template and writes one structured access log
// line per request. Lines carry the session alias once LoadSession has run.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := c.Path()
		for _, prefix := range unobservedPrefixes {
			if strings.HasPrefix(path, prefix) {
				return err
			}
		}

		elapsed := time.Since(start)
		route := routeTemplate(c)
		method := c.Method()
		status := c.Response().StatusCode()
		statusLabel := strconv.Itoa(status)

		observability.HTTPRequests().WithLabelValues(method, route, statusLabel).Inc()
		observability.HTTPLatency().WithLabelValues(method, route).Observe(elapsed.Seconds())
		if status >= fiber.StatusBadRequest {
			observability.HTTPErrors().WithLabelValues(method, route, statusLabel).Inc()
		}

		event := logger.Info()
		switch {
		case status >= fiber.StatusInternalServerError:
			event = logger.Error()
		case status >= fiber.StatusBadRequest:
			event = logger.Warn()
		}

		event = event.
			Str("correlation_id", GetCorrelationID(c)).
			Str("method", method).
			Str("route", route).
			Int("status", status).
			Dur("latency", elapsed)
		if action := c.Query("action"); action != "" {
			event = event.Str("action", action)
		}
		if session := CurrentSession(c); session != nil {
			event = event.Str("user", session.Alias)
		}
		event.Msg("request")

		return err
	}
}

func routeTemplate(c *fiber.Ctx) string {
	if route := c.Route(); route != nil && route.Path != "" {
		return route.Path
	}
	return c.Path()
}
