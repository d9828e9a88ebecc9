package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gestion-educativa-api/internal/middleware"
	"github.com/noah-isme/gestion-educativa-api/internal/models"
	"github.com/noah-isme/gestion-educativa-api/internal/service"
)

const testScope = "0b8f7f38-7f6b-4b83-9a55-3c1f1d5e2a10"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Details json.RawMessage `json:"details"`
	Message string          `json:"message"`
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.AddCookie(&http.Cookie{Name: middleware.ScopeCookie, Value: testScope})
	return req
}

type auditSpy struct {
	entries []service.AuditEntry
}

func (a *auditSpy) Log(_ context.Context, entry service.AuditEntry) {
	a.entries = append(a.entries, entry)
}

func (a *auditSpy) Recent(_ context.Context, limit int) ([]models.AuditLog, error) {
	out := make([]models.AuditLog, 0, len(a.entries))
	for i := len(a.entries) - 1; i >= 0 && len(out) < limit; i-- {
		entry := a.entries[i]
		out = append(out, models.AuditLog{User: entry.User, Action: entry.Action, Details: entry.Details, IP: entry.IP})
	}
	return out, nil
}

func (a *auditSpy) actions() []string {
	out := make([]string, 0, len(a.entries))
	for _, entry := range a.entries {
		out = append(out, entry.Action)
	}
	return out
}

type usersStub struct {
	users []models.User
}

func (u usersStub) List(context.Context) ([]models.User, error) {
	return u.users, nil
}

// testStack wires the real session, auth and token services over miniredis.
type testStack struct {
	sessions service.SessionStore
	auth     service.AuthService
	tokens   service.ModuleTokenService
	audit    *auditSpy
}

func newTestStack(t *testing.T) testStack {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := zerolog.Nop()
	audit := &auditSpy{}
	sessions := service.NewSessionStore(client, 30*time.Minute, logger)
	users := usersStub{users: []models.User{{Email: "ana@example.com", Secret: "s3cret", Name: "Ana", Alias: "ana"}}}

	return testStack{
		sessions: sessions,
		auth:     service.NewAuthService(service.NewCredentialStore(users, logger), sessions, audit, logger),
		tokens:   service.NewModuleTokenService(client, "secret", 15*time.Minute, audit, logger),
		audit:    audit,
	}
}

func (s testStack) login(t *testing.T) service.Session {
	t.Helper()
	session, err := s.auth.Login(context.Background(), testScope, "ana", "s3cret", service.RequestMeta{})
	require.NoError(t, err)
	s.audit.entries = nil
	return session
}
