package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gestion-educativa-api/internal/dto"
	"github.com/noah-isme/gestion-educativa-api/internal/handler"
	"github.com/noah-isme/gestion-educativa-api/internal/middleware"
	"github.com/noah-isme/gestion-educativa-api/internal/service"
)

type systemStub struct{}

func (systemStub) Test(_ context.Context, current *service.Session) service.SystemStatus {
	return service.SystemStatus{Version: "2.0.0", User: current}
}

func newRPCApp(stack testStack) *fiber.App {
	app := fiber.New()
	app.Use(middleware.LoadSession(stack.sessions, middleware.SessionOptions{}))
	h := handler.NewRPCHandler(stack.auth, stack.tokens, stack.audit, systemStub{}, nil, 15*time.Minute, zerolog.Nop())
	h.Register(app.Group("/rpc"), nil)
	return app
}

func TestRPCLoginAndUserInfo(t *testing.T) {
	stack := newTestStack(t)
	app := newRPCApp(stack)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/rpc/login", dto.LoginRequest{Email: "ana@example.com", Password: "s3cret", ClientIP: "10.1.1.1"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body envelope
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, "Login exitoso", body.Message)

	var session service.Session
	require.NoError(t, json.Unmarshal(body.Data, &session))
	require.Equal(t, "ana", session.Alias)
	require.Equal(t, "10.1.1.1", stack.audit.entries[0].IP)

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/rpc/getUserInfo", nil))
	require.NoError(t, err)
	var info struct {
		Data dto.AuthStatusResponse `json:"data"`
	}
	decodeResponse(t, resp, &info)
	require.True(t, info.Data.Authenticated)
	require.Equal(t, "ana@example.com", info.Data.User.Email)
}

func TestRPCLoginFailures(t *testing.T) {
	stack := newTestStack(t)
	app := newRPCApp(stack)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/rpc/login", dto.LoginRequest{Email: "ana", Password: "mal"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	var body envelope
	decodeResponse(t, resp, &body)
	require.Equal(t, service.ErrInvalidCredentials.Error(), body.Message)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/rpc/login", dto.LoginRequest{}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	require.Equal(t, []string{service.ActionLoginFailed, service.ActionLoginFailed}, stack.audit.actions())
}

func TestRPCOpenModuleIssuesToken(t *testing.T) {
	stack := newTestStack(t)
	stack.login(t)
	app := newRPCApp(stack)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/rpc/openModule", dto.OpenModuleRequest{Module: service.ModuleAttendance}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data    dto.ModuleResponse `json:"data"`
		Message string             `json:"message"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, "Módulo Control Asistencia abierto", body.Message)
	require.NotEmpty(t, body.Data.Token)
	require.Equal(t, int64(900), body.Data.ExpiresIn)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/rpc/validateModuleToken", dto.ValidateTokenRequest{Token: body.Data.Token, Module: service.ModuleAttendance}))
	require.NoError(t, err)
	var validation struct {
		Data service.ValidationResult `json:"data"`
	}
	decodeResponse(t, resp, &validation)
	require.True(t, validation.Data.Valid)

	require.Equal(t, []string{service.ActionModuleAccess, service.ActionTokenValid}, stack.audit.actions())
	require.Equal(t, "Accedió al módulo: CONTROL_ASISTENCIA", stack.audit.entries[0].Details)
}

func TestRPCOpenModuleAuditsUnknownModule(t *testing.T) {
	stack := newTestStack(t)
	stack.login(t)
	app := newRPCApp(stack)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/rpc/openModule", dto.OpenModuleRequest{Module: "NO_EXISTE"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.Equal(t, []string{service.ActionModuleAccess}, stack.audit.actions())
}

func TestRPCModuleCallsRequireSession(t *testing.T) {
	stack := newTestStack(t)
	app := newRPCApp(stack)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/rpc/openModule", dto.OpenModuleRequest{Module: service.ModuleAttendance}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/rpc/generateModuleToken", dto.ModuleTokenRequest{Module: service.ModuleAttendance}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/rpc/testSystem", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRPCLogoutEndsSession(t *testing.T) {
	stack := newTestStack(t)
	stack.login(t)
	app := newRPCApp(stack)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/rpc/logout", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	_, ok := stack.sessions.Read(context.Background(), testScope)
	require.False(t, ok)
	require.Equal(t, []string{service.ActionLogout}, stack.audit.actions())
	require.Equal(t, "ana@example.com", stack.audit.entries[0].User)
}

func TestRPCTestSystemReportsCaller(t *testing.T) {
	stack := newTestStack(t)
	stack.login(t)
	app := newRPCApp(stack)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/rpc/testSystem", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data service.SystemStatus `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, "2.0.0", body.Data.Version)
	require.Equal(t, "ana", body.Data.User.Alias)
}

func TestRPCRecentLogsNewestFirst(t *testing.T) {
	stack := newTestStack(t)
	app := newRPCApp(stack)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/rpc/getRecentLogs", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	stack.login(t)
	stack.audit.Log(context.Background(), service.AuditEntry{User: "ana@example.com", Action: service.ActionModuleAccess})
	stack.audit.Log(context.Background(), service.AuditEntry{User: "ana@example.com", Action: service.ActionDirectAccess})

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/rpc/getRecentLogs?limit=1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data []struct {
			Action string `json:"action"`
		} `json:"data"`
		Meta map[string]int `json:"meta"`
	}
	decodeResponse(t, resp, &body)
	require.Len(t, body.Data, 1)
	require.Equal(t, service.ActionDirectAccess, body.Data[0].Action)
	require.Equal(t, 1, body.Meta["count"])
}

func TestRPCMalformedBodiesAreStillAudited(t *testing.T) {
	stack := newTestStack(t)
	app := newRPCApp(stack)

	for _, target := range []string{"/rpc/login", "/rpc/openModule"} {
		req := httptest.NewRequest(http.MethodPost, target, strings.NewReader("{not json"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.AddCookie(&http.Cookie{Name: middleware.ScopeCookie, Value: testScope})

		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode, target)
	}

	require.Equal(t, []string{service.ActionLoginFailed, service.ActionModuleAccess}, stack.audit.actions())
	require.Equal(t, "Solicitud de módulo ilegible", stack.audit.entries[1].Details)
}
