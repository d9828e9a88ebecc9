package router_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gestion-educativa-api/internal/config"
	"github.com/noah-isme/gestion-educativa-api/internal/handler"
	"github.com/noah-isme/gestion-educativa-api/internal/middleware"
	"github.com/noah-isme/gestion-educativa-api/internal/models"
	"github.com/noah-isme/gestion-educativa-api/internal/router"
	"github.com/noah-isme/gestion-educativa-api/internal/service"
)

const scope = "6f1c2a7e-4f7b-4c1d-9a0e-2b5d8c3e1f00"

type nopAudit struct{}

func (nopAudit) Log(context.Context, service.AuditEntry) {}

func (nopAudit) Recent(context.Context, int) ([]models.AuditLog, error) { return nil, nil }

type fixture struct {
	app      *fiber.App
	sessions service.SessionStore
	tokens   service.ModuleTokenService
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := zerolog.Nop()
	cfg := config.Config{AppName: "Gestión", AppVersion: "2.0.0", AppEnv: "test"}
	sessions := service.NewSessionStore(client, 30*time.Minute, logger)
	tokens := service.NewModuleTokenService(client, "secret", 15*time.Minute, nopAudit{}, logger)
	attendance := service.NewAttendanceService(nil, nil, nil, "db_cursos", time.UTC, logger)

	app := fiber.New()
	router.Register(app, cfg, router.Dependencies{
		PageHandler:       handler.NewPageHandler(tokens, nopAudit{}, handler.PageOptions{AppName: cfg.AppName}, logger),
		AttendanceHandler: handler.NewAttendanceHandler(attendance, logger),
		Sessions:          sessions,
		ModuleTokens:      tokens,
	})

	return fixture{app: app, sessions: sessions, tokens: tokens}
}

func (f fixture) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	req.AddCookie(&http.Cookie{Name: middleware.ScopeCookie, Value: scope})
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestRegisterExposesHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "Gestión", resp.Header.Get("X-Application"))

	resp = f.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRegisterServesLoginPageAtRoot(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMETextHTML))
}

func TestAttendanceRoutesRequireSessionAndModuleToken(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/attendance/protection", nil))
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	session, err := f.sessions.Create(context.Background(), scope, models.User{Email: "ana@example.com", Alias: "ana"})
	require.NoError(t, err)

	resp = f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/attendance/protection", nil))
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	token, err := f.tokens.Issue(context.Background(), service.ModuleAttendance, &session)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance/protection", nil)
	req.Header.Set(middleware.ModuleTokenHeader, token)
	resp = f.do(t, req)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
