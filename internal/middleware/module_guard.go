package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gestion-educativa-api/internal/service"
	"github.com/noah-isme/gestion-educativa-api/internal/utils"
)

// ModuleTokenHeader carries the module capability token on module API calls.
const ModuleTokenHeader = "X-Module-Token"

// RequireModuleToken admits requests carrying a valid token for module that was issued
// to the caller's own session.
func RequireModuleToken(tokens service.ModuleTokenService, module string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := strings.TrimSpace(c.Get(ModuleTokenHeader))
		if token == "" {
			token = strings.TrimSpace(c.Query("token"))
		}

		result := tokens.Validate(c.UserContext(), token, module)
		if !result.Valid {
			return utils.Fail(c, fiber.StatusForbidden, "Token de módulo inválido", fiber.Map{"reason": result.Reason})
		}

		if session := CurrentSession(c); session != nil && session.SessionID != result.SessionID {
			return utils.Fail(c, fiber.StatusForbidden, "Token de módulo inválido", fiber.Map{"reason": service.ReasonCacheMismatch})
		}
		return c.Next()
	}
}
