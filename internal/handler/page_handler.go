package handler

import (
	"bytes"
	"embed"
	"html/template"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gestion-educativa-api/internal/dto"
	"github.com/noah-isme/gestion-educativa-api/internal/middleware"
	"github.com/noah-isme/gestion-educativa-api/internal/service"
	"github.com/noah-isme/gestion-educativa-api/internal/utils"
)

//go:embed templates/*.html
var pageFiles embed.FS

var pageTemplates = template.Must(template.ParseFS(pageFiles, "templates/*.html"))

// Page actions accepted on the root endpoint.
const (
	ActionValidateToken   = "validateToken"
	ActionLogDirectAccess = "logDirectAccess"
	ActionCheckAuth       = "checkAuth"
)

// PageOptions configures the rendered pages.
type PageOptions struct {
	AppName string
	Version string
	RPCBase string
}

type pageData struct {
	AppName string
	Version string
	RPCBase string
	User    *service.Session
	Modules []service.Module
}

// PageHandler serves the root entry point: the login and main pages plus the actions the
// pages call back into.
type PageHandler struct {
	tokens service.ModuleTokenService
	audit  service.AuditService
	opts   PageOptions
	logger zerolog.Logger
}

// NewPageHandler constructs the page handler.
func NewPageHandler(tokens service.ModuleTokenService, audit service.AuditService, opts PageOptions, logger zerolog.Logger) *PageHandler {
	if opts.RPCBase == "" {
		opts.RPCBase = "/api/v1/rpc"
	}
	return &PageHandler{
		tokens: tokens,
		audit:  audit,
		opts:   opts,
		logger: logger.With().Str("component", "page_handler").Logger(),
	}
}

// Register wires the root routes. The router must run after middleware.LoadSession.
func (h *PageHandler) Register(router fiber.Router) {
	router.Get("/", h.serve)
	router.Post("/", h.serve)
}

func (h *PageHandler) serve(c *fiber.Ctx) error {
	action := strings.TrimSpace(c.Query("action"))
	if action == "" {
		action = strings.TrimSpace(c.FormValue("action"))
	}

	switch action {
	case ActionValidateToken:
		return h.validateToken(c)
	case ActionLogDirectAccess:
		return h.logDirectAccess(c)
	case ActionCheckAuth:
		session := middleware.CurrentSession(c)
		return utils.SendSuccess(c, "success", dto.AuthStatusResponse{Authenticated: session != nil, User: session})
	}

	data := pageData{AppName: h.opts.AppName, Version: h.opts.Version, RPCBase: h.opts.RPCBase}
	page := "login.html"
	if session := middleware.CurrentSession(c); session != nil {
		page = "main.html"
		data.User = session
		data.Modules = service.Modules()
	}

	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, page, data); err != nil {
		requestLogger(h.logger, c).Error().Err(err).Str("page", page).Msg("failed to render page")
		return utils.SendError(c, fiber.StatusInternalServerError, "Error al cargar la página")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(buf.Bytes())
}

func (h *PageHandler) validateToken(c *fiber.Ctx) error {
	var payload dto.ValidateTokenRequest
	if err := c.QueryParser(&payload); err != nil {
		return invalidPayload(c)
	}
	if payload.Token == "" && c.Method() == fiber.MethodPost {
		if err := c.BodyParser(&payload); err != nil {
			return invalidPayload(c)
		}
	}

	result := h.tokens.Validate(c.UserContext(), payload.Token, payload.Module)
	return utils.SendSuccess(c, result.Reason, result)
}

func (h *PageHandler) logDirectAccess(c *fiber.Ctx) error {
	entry := service.AuditEntry{
		Action:    service.ActionDirectAccess,
		Details:   service.SanitizeInput(c.Query("details", "Acceso directo a la aplicación")),
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
	if session := middleware.CurrentSession(c); session != nil {
		entry.User = session.Email
	}
	h.audit.Log(c.UserContext(), entry)
	return utils.SendSuccess(c, "Acceso registrado", nil)
}
