package handler

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gestion-educativa-api/internal/dto"
	"github.com/noah-isme/gestion-educativa-api/internal/middleware"
	"github.com/noah-isme/gestion-educativa-api/internal/service"
	"github.com/noah-isme/gestion-educativa-api/internal/utils"
)

// RPCHandler exposes the page-facing session and module calls.
type RPCHandler struct {
	auth     service.AuthService
	tokens   service.ModuleTokenService
	audit    service.AuditService
	system   service.SystemService
	validate *validator.Validate
	tokenTTL time.Duration
	logger   zerolog.Logger
}

// NewRPCHandler constructs the RPC handler.
func NewRPCHandler(auth service.AuthService, tokens service.ModuleTokenService, audit service.AuditService, system service.SystemService, validate *validator.Validate, tokenTTL time.Duration, logger zerolog.Logger) *RPCHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &RPCHandler{
		auth:     auth,
		tokens:   tokens,
		audit:    audit,
		system:   system,
		validate: validate,
		tokenTTL: tokenTTL,
		logger:   logger.With().Str("component", "rpc_handler").Logger(),
	}
}

// Register wires RPC routes. The group must run after middleware.LoadSession.
func (h *RPCHandler) Register(router fiber.Router, loginLimiter fiber.Handler) {
	if loginLimiter != nil {
		router.Post("/login", loginLimiter, h.login)
	} else {
		router.Post("/login", h.login)
	}
	router.Post("/logout", h.logout)
	router.Get("/getUserInfo", h.userInfo)
	router.Post("/getUserInfo", h.userInfo)
	router.Post("/openModule", h.openModule)
	router.Post("/generateModuleToken", middleware.RequireSession(), h.generateModuleToken)
	router.Post("/validateModuleToken", h.validateModuleToken)
	router.Get("/testSystem", middleware.RequireSession(), h.testSystem)
	router.Post("/testSystem", middleware.RequireSession(), h.testSystem)
	router.Get("/getRecentLogs", middleware.RequireSession(), h.recentLogs)
}

func (h *RPCHandler) login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		meta := requestMeta(c, "")
		h.audit.Log(c.UserContext(), service.AuditEntry{
			Action:    service.ActionLoginFailed,
			Details:   "Solicitud de login ilegible",
			IP:        meta.IP,
			UserAgent: meta.UserAgent,
		})
		return invalidPayload(c)
	}

	session, err := h.auth.Login(c.UserContext(), middleware.Scope(c), payload.Email, payload.Password, requestMeta(c, payload.ClientIP))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingCredentials):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInvalidCredentials):
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("login failed")
			return utils.SendError(c, fiber.StatusServiceUnavailable, service.ErrAuthUnavailable.Error())
		}
	}

	middleware.SetSession(c, &session)
	return utils.SendSuccess(c, "Login exitoso", session)
}

func (h *RPCHandler) logout(c *fiber.Ctx) error {
	if err := h.auth.Logout(c.UserContext(), middleware.Scope(c), requestMeta(c, "")); err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("logout failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "Error al cerrar sesión")
	}
	middleware.SetSession(c, nil)
	return utils.SendSuccess(c, "Sesión cerrada correctamente", nil)
}

func (h *RPCHandler) userInfo(c *fiber.Ctx) error {
	session := middleware.CurrentSession(c)
	return utils.SendSuccess(c, "success", dto.AuthStatusResponse{Authenticated: session != nil, User: session})
}

func (h *RPCHandler) openModule(c *fiber.Ctx) error {
	var payload dto.OpenModuleRequest
	parseErr := c.BodyParser(&payload)

	session := middleware.CurrentSession(c)
	entry := service.AuditEntry{Action: service.ActionModuleAccess, Details: "Accedió al módulo: " + payload.Module}
	if parseErr != nil {
		entry.Details = "Solicitud de módulo ilegible"
	}
	meta := requestMeta(c, payload.ClientIP)
	entry.IP, entry.UserAgent = meta.IP, meta.UserAgent
	if session != nil {
		entry.User = session.Email
	}
	h.audit.Log(c.UserContext(), entry)

	if parseErr != nil {
		return invalidPayload(c)
	}

	if err := h.validate.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, service.ErrModuleNotFound.Error())
	}
	module, err := service.LookupModule(payload.Module)
	if err != nil {
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	}

	token, err := h.tokens.Issue(c.UserContext(), module.Key, session)
	if err != nil {
		return h.tokenError(c, err)
	}

	return utils.SendSuccess(c, module.Message, dto.ModuleResponse{
		Module:    module.Key,
		Title:     module.Title,
		Token:     token,
		ExpiresIn: int64(h.tokenTTL.Seconds()),
	})
}

func (h *RPCHandler) generateModuleToken(c *fiber.Ctx) error {
	var payload dto.ModuleTokenRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}
	if err := h.validate.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, service.ErrModuleNotFound.Error())
	}

	token, err := h.tokens.Issue(c.UserContext(), payload.Module, middleware.CurrentSession(c))
	if err != nil {
		return h.tokenError(c, err)
	}
	return utils.SendSuccess(c, "Token generado", dto.ModuleTokenResponse{Token: token, ExpiresIn: int64(h.tokenTTL.Seconds())})
}

func (h *RPCHandler) validateModuleToken(c *fiber.Ctx) error {
	var payload dto.ValidateTokenRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}
	if err := h.validate.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, service.ErrModuleNotFound.Error())
	}

	result := h.tokens.Validate(c.UserContext(), payload.Token, payload.Module)
	return utils.SendSuccess(c, result.Reason, result)
}

func (h *RPCHandler) testSystem(c *fiber.Ctx) error {
	status := h.system.Test(c.UserContext(), middleware.CurrentSession(c))
	return utils.SendSuccess(c, "Sistema verificado", status)
}

func (h *RPCHandler) recentLogs(c *fiber.Ctx) error {
	entries, err := h.audit.Recent(c.UserContext(), c.QueryInt("limit", 50))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list audit entries")
		return utils.SendError(c, fiber.StatusInternalServerError, "Error al leer el registro de auditoría")
	}
	return utils.OK(c, entries, "success", fiber.Map{"count": len(entries)})
}

func (h *RPCHandler) tokenError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrModuleNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to issue module token")
		return utils.SendError(c, fiber.StatusInternalServerError, "Error generando token de módulo")
	}
}
