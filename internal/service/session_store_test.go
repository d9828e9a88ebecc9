package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gestion-educativa-api/internal/models"
	"github.com/noah-isme/gestion-educativa-api/internal/observability"
)

func TestSessionStoreCreateAndRead(t *testing.T) {
	server, client := newTestRedis(t)
	clock := newTestClock()
	store := newSessionStore(client, 30*time.Minute, testLogger(), clock.Now)
	store.newID = func() string { return "sid-1" }

	ctx := context.Background()
	created, err := store.Create(ctx, "scope-a", models.User{Email: "ana@example.com"})
	require.NoError(t, err)
	require.Equal(t, "sid-1", created.SessionID)
	require.Equal(t, "Usuario", created.Name)
	require.Equal(t, "ana", created.Alias)

	require.True(t, server.Exists("session:sid-1"))
	pointer, err := server.Get("session:current:scope-a")
	require.NoError(t, err)
	require.Equal(t, "sid-1", pointer)
	require.Equal(t, 30*time.Minute, server.TTL("session:sid-1"))
	require.Equal(t, 30*time.Minute, server.TTL("session:current:scope-a"))

	clock.Advance(10 * time.Minute)
	session, ok := store.Read(ctx, "scope-a")
	require.True(t, ok)
	require.Equal(t, "ana@example.com", session.Email)
	require.Equal(t, clock.Now(), session.LastActivity)

	_, ok = store.Read(ctx, "scope-b")
	require.False(t, ok)
}

func TestSessionStoreExpiresIdleSessions(t *testing.T) {
	server, client := newTestRedis(t)
	clock := newTestClock()
	store := newSessionStore(client, 30*time.Minute, testLogger(), clock.Now)

	expired := observability.SessionEvents().WithLabelValues("expired")
	before := testutil.ToFloat64(expired)

	ctx := context.Background()
	_, err := store.Create(ctx, "scope-a", models.User{Email: "ana@example.com", Alias: "ana"})
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)
	_, ok := store.Read(ctx, "scope-a")
	require.False(t, ok)
	require.False(t, server.Exists("session:current:scope-a"))
	require.Equal(t, before+1, testutil.ToFloat64(expired))

	clock.Advance(time.Minute)
	_, ok = store.Read(ctx, "scope-a")
	require.False(t, ok)
}

func TestSessionStoreReadExtendsIdleWindow(t *testing.T) {
	_, client := newTestRedis(t)
	clock := newTestClock()
	store := newSessionStore(client, 30*time.Minute, testLogger(), clock.Now)

	ctx := context.Background()
	_, err := store.Create(ctx, "scope-a", models.User{Email: "ana@example.com"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		clock.Advance(20 * time.Minute)
		_, ok := store.Read(ctx, "scope-a")
		require.True(t, ok)
	}
}

func TestSessionStoreDropsDanglingPointer(t *testing.T) {
	server, client := newTestRedis(t)
	store := newSessionStore(client, 30*time.Minute, testLogger(), newTestClock().Now)

	require.NoError(t, server.Set("session:current:scope-a", "gone"))

	_, ok := store.Read(context.Background(), "scope-a")
	require.False(t, ok)
	require.False(t, server.Exists("session:current:scope-a"))
}

func TestSessionStoreDestroyIsIdempotent(t *testing.T) {
	server, client := newTestRedis(t)
	store := newSessionStore(client, 30*time.Minute, testLogger(), newTestClock().Now)
	store.newID = func() string { return "sid-9" }

	ctx := context.Background()
	_, err := store.Create(ctx, "scope-a", models.User{Email: "ana@example.com"})
	require.NoError(t, err)

	require.NoError(t, store.Destroy(ctx, "scope-a"))
	require.False(t, server.Exists("session:sid-9"))
	require.False(t, server.Exists("session:current:scope-a"))
	require.NoError(t, store.Destroy(ctx, "scope-a"))

	_, err = store.Create(ctx, "", models.User{Email: "ana@example.com"})
	require.ErrorIs(t, err, ErrMissingScope)
}
