package handler

import (
	"errors"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gestion-educativa-api/internal/attendance"
	"github.com/noah-isme/gestion-educativa-api/internal/middleware"
	"github.com/noah-isme/gestion-educativa-api/internal/service"
	"github.com/noah-isme/gestion-educativa-api/internal/utils"
)

const maxExportSize = 5 * 1024 * 1024

var errUnsupportedExport = errors.New("Formato de archivo no soportado. Use un archivo CSV.")

// AttendanceHandler exposes the attendance module.
type AttendanceHandler struct {
	service service.AttendanceService
	logger  zerolog.Logger
}

// NewAttendanceHandler constructs an attendance handler.
func NewAttendanceHandler(service service.AttendanceService, logger zerolog.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		service: service,
		logger:  logger.With().Str("component", "attendance_handler").Logger(),
	}
}

// Register wires attendance routes.
func (h *AttendanceHandler) Register(router fiber.Router) {
	router.Post("/process", h.process)
	router.Post("/finalize", h.finalize)
	router.Get("/courses/:id", h.course)
	router.Get("/protection", h.protection)
}

func (h *AttendanceHandler) process(c *fiber.Ctx) error {
	req, err := h.processRequest(c)
	if err != nil {
		if errors.Is(err, errUnsupportedExport) {
			return utils.SendError(c, fiber.StatusUnsupportedMediaType, err.Error())
		}
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.Process(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, attendance.ErrEmptyUpload) || errors.Is(err, attendance.ErrNoDataRows) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Warn().Err(err).Msg("attendance export rejected")
		return utils.SendError(c, fiber.StatusBadRequest, "Error procesando el archivo: "+err.Error())
	}
	return utils.OK(c, result, "Archivo procesado", fiber.Map{
		"participantes": len(result.Summary),
		"sinCorreo":     len(result.WithoutEmail),
	})
}

// processRequest accepts either a multipart upload in "file" or a JSON body.
func (h *AttendanceHandler) processRequest(c *fiber.Ctx) (service.ProcessRequest, error) {
	if !strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		var req service.ProcessRequest
		if err := c.BodyParser(&req); err != nil {
			return req, errors.New("Solicitud inválida")
		}
		return req, nil
	}

	req := service.ProcessRequest{CourseID: c.FormValue("courseId")}
	header, err := c.FormFile("file")
	if err != nil {
		return req, attendance.ErrEmptyUpload
	}
	if header.Size > maxExportSize {
		return req, errors.New("El archivo supera el tamaño máximo permitido.")
	}

	file, err := header.Open()
	if err != nil {
		return req, attendance.ErrEmptyUpload
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxExportSize))
	if err != nil {
		return req, attendance.ErrEmptyUpload
	}
	if len(content) > 0 && !isTextExport(content) {
		return req, errUnsupportedExport
	}
	req.Content = string(content)
	return req, nil
}

func isTextExport(content []byte) bool {
	for mtype := mimetype.Detect(content); mtype != nil; mtype = mtype.Parent() {
		if mtype.Is("text/plain") {
			return true
		}
	}
	return false
}

func (h *AttendanceHandler) finalize(c *fiber.Ctx) error {
	var req service.FinalizeRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(c)
	}

	result, err := h.service.Finalize(c.UserContext(), middleware.CurrentSession(c), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFinalizeParams), errors.Is(err, service.ErrNothingToExport), errors.Is(err, service.ErrNoValidDates):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrStorageUnavailable):
			return utils.SendError(c, fiber.StatusServiceUnavailable, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("attendance finalisation failed")
			return utils.SendError(c, fiber.StatusBadGateway, "Error al guardar los resultados")
		}
	}
	return utils.SendSuccess(c, result.Message, result)
}

func (h *AttendanceHandler) course(c *fiber.Ctx) error {
	details, err := h.service.GetCourse(c.UserContext(), c.Params("id"), c.Query("fecha"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCourseIDEmpty):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case service.IsCourseNotFound(err):
			return utils.SendError(c, fiber.StatusNotFound, service.PublicMessage(err))
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("course lookup failed")
			return utils.SendError(c, fiber.StatusBadGateway, service.ErrDocumentStoreUnavailable.Error())
		}
	}
	return utils.SendSuccess(c, "success", details)
}

func (h *AttendanceHandler) protection(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "success", h.service.Protection())
}
