package utils

import "github.com/gofiber/fiber/v2"

const (
	defaultSuccessMessage = "Operación completada"
	defaultErrorMessage   = "Error interno del servidor"
)

// APIResponse is the envelope every JSON endpoint answers with.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Details interface{} `json:"details,omitempty"`
	Message string      `json:"message"`
}

// SendSuccess answers 200 with data.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus answers a success envelope with an explicit status code.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	return respond(c, status, APIResponse{Success: true, Data: data, Message: message})
}

// OK answers 200 with data and metadata such as counts or limiter state.
func OK(c *fiber.Ctx, data interface{}, message string, meta interface{}) error {
	return respond(c, fiber.StatusOK, APIResponse{Success: true, Data: data, Meta: meta, Message: message})
}

// SendError answers a failure envelope without details.
func SendError(c *fiber.Ctx, status int, message string) error {
	return Fail(c, status, message, nil)
}

// Fail answers a failure envelope. Validation messages and similar go in details.
func Fail(c *fiber.Ctx, status int, message string, details interface{}) error {
	if status == 0 {
		status = fiber.StatusInternalServerError
	}
	return respond(c, status, APIResponse{Success: false, Details: details, Message: message})
}

func respond(c *fiber.Ctx, status int, body APIResponse) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	if body.Message == "" {
		body.Message = defaultErrorMessage
		if body.Success {
			body.Message = defaultSuccessMessage
		}
	}
	return c.Status(status).JSON(body)
}
