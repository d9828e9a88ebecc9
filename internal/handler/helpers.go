package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gestion-educativa-api/internal/middleware"
	"github.com/noah-isme/gestion-educativa-api/internal/service"
	"github.com/noah-isme/gestion-educativa-api/internal/utils"
)

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// validationFields lists the namespaces of the fields that failed validation.
func validationFields(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	fields := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		fields = append(fields, fieldErr.Namespace())
	}
	return fields
}

// requestMeta prefers the client-reported IP, which is what the browser pages send.
func requestMeta(c *fiber.Ctx, clientIP string) service.RequestMeta {
	ip := strings.TrimSpace(clientIP)
	if ip == "" {
		ip = c.IP()
	}
	return service.RequestMeta{IP: ip, UserAgent: c.Get(fiber.HeaderUserAgent)}
}

func invalidPayload(c *fiber.Ctx) error {
	return utils.SendError(c, fiber.StatusBadRequest, "Solicitud inválida")
}
