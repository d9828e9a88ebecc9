package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gestion-educativa-api/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

type testClock struct {
	current time.Time
}

func newTestClock() *testClock {
	return &testClock{current: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time { return c.current }

func (c *testClock) Advance(d time.Duration) { c.current = c.current.Add(d) }

type auditRecorder struct {
	entries []AuditEntry
}

func (a *auditRecorder) Log(_ context.Context, entry AuditEntry) {
	a.entries = append(a.entries, entry)
}

func (a *auditRecorder) Recent(context.Context, int) ([]models.AuditLog, error) {
	return nil, nil
}

func (a *auditRecorder) actions() []string {
	actions := make([]string, 0, len(a.entries))
	for _, entry := range a.entries {
		actions = append(actions, entry.Action)
	}
	return actions
}
