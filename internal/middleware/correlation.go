package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// CorrelationHeader carries the request identifier in both directions.
const CorrelationHeader = "X-Correlation-ID"

const (
	correlationLocal     = "correlation_id"
	maxCorrelationLength = 128
)

type correlationKey struct{}

// CorrelationID tags every request with an identifier, reusing a sane incoming one. The
// identifier is echoed back and stored on the user context so audit entries can carry it.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get(CorrelationHeader))
		if id == "" {
			id = strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		}
		if id == "" || len(id) > maxCorrelationLength || strings.ContainsAny(id, "\r\n") {
			id = uuid.NewString()
		}

		c.Locals(correlationLocal, id)
		c.Set(CorrelationHeader, id)
		c.SetUserContext(context.WithValue(c.UserContext(), correlationKey{}, id))

		return c.Next()
	}
}

// GetCorrelationID returns the identifier bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if id, ok := c.Locals(correlationLocal).(string); ok {
		return id
	}
	return CorrelationFromContext(c.UserContext())
}

// CorrelationFromContext extracts the identifier stored by CorrelationID.
func CorrelationFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
