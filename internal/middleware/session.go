package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/noah-isme/gestion-educativa-api/internal/service"
	"github.com/noah-isme/gestion-educativa-api/internal/utils"
)

// ScopeCookie carries the opaque per-client identifier sessions are bound to.
const ScopeCookie = "gse_scope"

const (
	scopeLocal   = "session_scope"
	sessionLocal = "session"
	scopeMaxAge  = 30 * 24 * time.Hour
)

// SessionOptions configures LoadSession.
type SessionOptions struct {
	Secure bool
}

// LoadSession resolves the client scope from its cookie, issuing a new one when absent,
// and attaches the current session, if any, to the request.
func LoadSession(sessions service.SessionStore, opts SessionOptions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope := c.Cookies(ScopeCookie)
		if _, err := uuid.Parse(scope); err != nil {
			scope = uuid.NewString()
			c.Cookie(&fiber.Cookie{
				Name:     ScopeCookie,
				Value:    scope,
				Path:     "/",
				MaxAge:   int(scopeMaxAge.Seconds()),
				HTTPOnly: true,
				Secure:   opts.Secure,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}
		c.Locals(scopeLocal, scope)

		if session, ok := sessions.Read(c.UserContext(), scope); ok {
			c.Locals(sessionLocal, &session)
		}
		return c.Next()
	}
}

// RequireSession rejects requests without an active session.
func RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentSession(c) == nil {
			return utils.Fail(c, fiber.StatusUnauthorized, service.ErrUnauthenticated.Error(), nil)
		}
		return c.Next()
	}
}

// Scope returns the client scope bound by LoadSession.
func Scope(c *fiber.Ctx) string {
	if value, ok := c.Locals(scopeLocal).(string); ok {
		return value
	}
	return ""
}

// CurrentSession returns the active session, or nil.
func CurrentSession(c *fiber.Ctx) *service.Session {
	if value, ok := c.Locals(sessionLocal).(*service.Session); ok {
		return value
	}
	return nil
}

// SetSession replaces the session seen by later handlers of the same request.
func SetSession(c *fiber.Ctx, session *service.Session) {
	c.Locals(sessionLocal, session)
}
