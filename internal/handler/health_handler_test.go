package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gestion-educativa-api/internal/config"
	"github.com/noah-isme/gestion-educativa-api/internal/handler"
)

func TestHealthCheckReportsDependencies(t *testing.T) {
	cfg := config.Config{AppName: "gestion", AppVersion: "2.0.0", AppEnv: "test"}
	healthy := func(context.Context) error { return nil }
	failing := func(context.Context) error { return errors.New("down") }

	app := fiber.New()
	app.Get("/ok", handler.HealthCheck(cfg, map[string]handler.HealthProbe{"redis": healthy}))
	app.Get("/degraded", handler.HealthCheck(cfg, map[string]handler.HealthProbe{"redis": healthy, "database": failing}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body struct {
		Data handler.HealthResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, "ok", body.Data.Status)
	require.Equal(t, "2.0.0", body.Data.Version)
	require.Equal(t, map[string]string{"redis": "up"}, body.Data.Dependencies)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/degraded", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	decodeResponse(t, resp, &body)
	require.Equal(t, "degraded", body.Data.Status)
	require.Equal(t, "down", body.Data.Dependencies["database"])
}
