package middleware_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gestion-educativa-api/internal/middleware"
	"github.com/noah-isme/gestion-educativa-api/internal/observability"
)

func TestObservabilityCountsRoutesAndSkipsHealth(t *testing.T) {
	var logs bytes.Buffer
	app := fiber.New()
	app.Use(middleware.Observability(zerolog.New(&logs)))
	app.Get("/api/v1/documents/:collection", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})
	app.Get("/api/v1/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	errors := observability.HTTPErrors().WithLabelValues(http.MethodGet, "/api/v1/documents/:collection", "404")
	before := testutil.ToFloat64(errors)

	resp := perform(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/documents/alumnos", nil))
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.Equal(t, before+1, testutil.ToFloat64(errors))
	require.Contains(t, logs.String(), `"route":"/api/v1/documents/:collection"`)
	require.Contains(t, logs.String(), `"level":"warn"`)

	logs.Reset()
	resp = perform(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Empty(t, logs.String())
}
