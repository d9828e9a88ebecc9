package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/gestion-educativa-api/internal/models"
	"github.com/noah-isme/gestion-educativa-api/internal/observability"
)

type userRepoStub struct {
	users []models.User
	err   error
}

func (u *userRepoStub) List(context.Context) ([]models.User, error) {
	return u.users, u.err
}

func newAuthFixture(t *testing.T, users *userRepoStub) (AuthService, *auditRecorder) {
	t.Helper()
	_, client := newTestRedis(t)
	audit := &auditRecorder{}
	sessions := NewSessionStore(client, 30*time.Minute, testLogger())
	svc := NewAuthService(NewCredentialStore(users, testLogger()), sessions, audit, testLogger())
	return svc, audit
}

func TestAuthServiceLoginByEmailAndAlias(t *testing.T) {
	users := &userRepoStub{users: []models.User{
		{Email: "ana@example.com", Secret: "s3cret", Name: "Ana", Alias: "ana.g"},
		{Email: "luis@example.com", Secret: "otra"},
	}}
	svc, audit := newAuthFixture(t, users)
	ctx := context.Background()
	meta := RequestMeta{IP: "10.0.0.1", UserAgent: "test"}

	session, err := svc.Login(ctx, "scope-a", "ana@example.com", "s3cret", meta)
	require.NoError(t, err)
	require.Equal(t, "Ana", session.Name)
	require.Equal(t, "ana.g", session.Alias)

	session, err = svc.Login(ctx, "scope-b", "ana.g", "s3cret", meta)
	require.NoError(t, err)
	require.Equal(t, "ana@example.com", session.Email)

	session, err = svc.Login(ctx, "scope-c", "luis@example.com", "otra", meta)
	require.NoError(t, err)
	require.Equal(t, "Usuario", session.Name)
	require.Equal(t, "luis", session.Alias)

	current, ok := svc.CurrentUser(ctx, "scope-b")
	require.True(t, ok)
	require.Equal(t, "ana.g", current.Alias)

	require.Equal(t, []string{ActionLoginSuccess, ActionLoginSuccess, ActionLoginSuccess}, audit.actions())
	require.Equal(t, "Usuario ana.g autenticado (usó: ana.g)", audit.entries[1].Details)
	require.Equal(t, "10.0.0.1", audit.entries[0].IP)
}

func TestAuthServiceLoginFailuresAreGeneric(t *testing.T) {
	users := &userRepoStub{users: []models.User{{Email: "ana@example.com", Secret: "s3cret", Alias: "ana"}}}
	svc, audit := newAuthFixture(t, users)
	ctx := context.Background()

	_, err := svc.Login(ctx, "scope", "ana@example.com", "wrong", RequestMeta{})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "scope", "nadie@example.com", "s3cret", RequestMeta{})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "scope", "  ", "s3cret", RequestMeta{})
	require.ErrorIs(t, err, ErrMissingCredentials)

	require.Equal(t, []string{ActionLoginFailed, ActionLoginFailed, ActionLoginFailed}, audit.actions())
	require.Equal(t, "Intento fallido para: nadie@example.com", audit.entries[1].Details)

	_, ok := svc.CurrentUser(ctx, "scope")
	require.False(t, ok)
}

func TestAuthServiceUnreadableUsersTable(t *testing.T) {
	svc, _ := newAuthFixture(t, &userRepoStub{err: errors.New("sheet not found")})

	_, err := svc.Login(context.Background(), "scope", "ana@example.com", "s3cret", RequestMeta{})
	require.ErrorIs(t, err, ErrAuthUnavailable)
}

func TestAuthServiceAcceptsBcryptSecrets(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	svc, _ := newAuthFixture(t, &userRepoStub{users: []models.User{{Email: "ana@example.com", Secret: string(hash)}}})

	_, err = svc.Login(context.Background(), "scope", "ana@example.com", "s3cret", RequestMeta{})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "scope", "ana@example.com", string(hash), RequestMeta{})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthServiceLogout(t *testing.T) {
	users := &userRepoStub{users: []models.User{{Email: "ana@example.com", Secret: "s3cret", Alias: "ana"}}}
	svc, audit := newAuthFixture(t, users)
	ctx := context.Background()

	_, err := svc.Login(ctx, "scope", "ana", "s3cret", RequestMeta{})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, "scope", RequestMeta{IP: "1.2.3.4"}))
	_, ok := svc.CurrentUser(ctx, "scope")
	require.False(t, ok)

	require.NoError(t, svc.Logout(ctx, "scope", RequestMeta{}))
	require.Equal(t, []string{ActionLoginSuccess, ActionLogout, ActionLogout}, audit.actions())
	require.Equal(t, "ana@example.com", audit.entries[1].User)
	require.Empty(t, audit.entries[2].User)
}

func TestAuthServiceLogoutAuditsStoreFailure(t *testing.T) {
	server, client := newTestRedis(t)
	audit := &auditRecorder{}
	sessions := NewSessionStore(client, 30*time.Minute, testLogger())
	users := &userRepoStub{users: []models.User{{Email: "ana@example.com", Secret: "s3cret", Alias: "ana"}}}
	svc := NewAuthService(NewCredentialStore(users, testLogger()), sessions, audit, testLogger())
	ctx := context.Background()

	_, err := svc.Login(ctx, "scope", "ana", "s3cret", RequestMeta{})
	require.NoError(t, err)

	server.Close()
	require.Error(t, svc.Logout(ctx, "scope", RequestMeta{IP: "1.2.3.4"}))

	require.Equal(t, []string{ActionLoginSuccess, ActionLogout}, audit.actions())
	require.Contains(t, audit.entries[1].Details, "error")
	require.Equal(t, "1.2.3.4", audit.entries[1].IP)
}

func TestAuthServiceCountsSessionEvents(t *testing.T) {
	users := &userRepoStub{users: []models.User{{Email: "ana@example.com", Secret: "s3cret", Alias: "ana"}}}
	svc, _ := newAuthFixture(t, users)
	ctx := context.Background()

	opened := observability.SessionEvents().WithLabelValues("opened")
	closed := observability.SessionEvents().WithLabelValues("closed")
	openedBefore, closedBefore := testutil.ToFloat64(opened), testutil.ToFloat64(closed)

	_, err := svc.Login(ctx, "scope", "ana", "s3cret", RequestMeta{})
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, "scope", RequestMeta{}))
	require.NoError(t, svc.Logout(ctx, "scope", RequestMeta{}))

	require.Equal(t, openedBefore+1, testutil.ToFloat64(opened))
	require.Equal(t, closedBefore+1, testutil.ToFloat64(closed))
}
