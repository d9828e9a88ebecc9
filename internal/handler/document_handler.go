package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gestion-educativa-api/internal/dto"
	"github.com/noah-isme/gestion-educativa-api/internal/middleware"
	"github.com/noah-isme/gestion-educativa-api/internal/service"
	"github.com/noah-isme/gestion-educativa-api/internal/utils"
)

// DocumentHandler exposes the per-user document collections.
type DocumentHandler struct {
	service  service.DocumentService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewDocumentHandler constructs a document handler.
func NewDocumentHandler(service service.DocumentService, validate *validator.Validate, logger zerolog.Logger) *DocumentHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &DocumentHandler{
		service:  service,
		validate: validate,
		logger:   logger.With().Str("component", "document_handler").Logger(),
	}
}

// Register wires document routes.
func (h *DocumentHandler) Register(router fiber.Router) {
	router.Get("/:collection", h.list)
	router.Post("/:collection", h.create)
	router.Post("/:collection/batch", h.createBatch)
	router.Get("/:collection/:id", h.get)
	router.Put("/:collection/:id", h.update)
	router.Patch("/:collection/:id", h.update)
	router.Delete("/:collection/:id", h.delete)
}

func (h *DocumentHandler) list(c *fiber.Ctx) error {
	records, err := h.service.List(c.UserContext(), middleware.CurrentSession(c), c.Params("collection"))
	if err != nil {
		return h.fail(c, err)
	}
	return utils.OK(c, records, "success", fiber.Map{"count": len(records)})
}

func (h *DocumentHandler) get(c *fiber.Ctx) error {
	record, err := h.service.Get(c.UserContext(), middleware.CurrentSession(c), c.Params("collection"), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return utils.SendSuccess(c, "success", record)
}

func (h *DocumentHandler) create(c *fiber.Ctx) error {
	var payload map[string]any
	if err := c.BodyParser(&payload); err != nil || len(payload) == 0 {
		return invalidPayload(c)
	}

	record, err := h.service.Create(c.UserContext(), middleware.CurrentSession(c), c.Params("collection"), payload)
	if err != nil {
		return h.fail(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "Documento creado", record)
}

func (h *DocumentHandler) createBatch(c *fiber.Ctx) error {
	var payload dto.DocumentBatchRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}
	if err := h.validate.Struct(payload); err != nil {
		if isValidationError(err) {
			return utils.Fail(c, fiber.StatusBadRequest, "El lote debe contener al menos un elemento válido", validationFields(err))
		}
		return invalidPayload(c)
	}

	records, err := h.service.CreateBatch(c.UserContext(), middleware.CurrentSession(c), c.Params("collection"), payload.Items)
	if err != nil {
		return h.fail(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "Documentos creados", records)
}

func (h *DocumentHandler) update(c *fiber.Ctx) error {
	var payload map[string]any
	if err := c.BodyParser(&payload); err != nil || len(payload) == 0 {
		return invalidPayload(c)
	}

	record, err := h.service.Update(c.UserContext(), middleware.CurrentSession(c), c.Params("collection"), c.Params("id"), payload)
	if err != nil {
		return h.fail(c, err)
	}
	return utils.SendSuccess(c, "Documento actualizado", record)
}

func (h *DocumentHandler) delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), middleware.CurrentSession(c), c.Params("collection"), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return utils.SendSuccess(c, "Documento eliminado", nil)
}

func (h *DocumentHandler) fail(c *fiber.Ctx, err error) error {
	var validationErr *service.ValidationError
	var batchErr *service.BatchLimitError
	switch {
	case errors.As(err, &validationErr):
		return utils.Fail(c, fiber.StatusUnprocessableEntity, validationErr.Error(), validationErr.Messages)
	case errors.As(err, &batchErr):
		return utils.SendError(c, fiber.StatusBadRequest, batchErr.Error())
	case errors.Is(err, service.ErrInvalidCollection):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDocumentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrDocumentStoreUnavailable):
		return utils.SendError(c, fiber.StatusBadGateway, service.ErrDocumentStoreUnavailable.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("document request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, service.ErrDocumentStoreUnavailable.Error())
	}
}
