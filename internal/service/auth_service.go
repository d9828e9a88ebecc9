package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/gestion-educativa-api/internal/models"
	"github.com/noah-isme/gestion-educativa-api/internal/observability"
	"github.com/noah-isme/gestion-educativa-api/internal/repository"
)

var (
	// ErrMissingCredentials is returned when identifier or secret is blank.
	ErrMissingCredentials = errors.New("Email y contraseña son requeridos")
	// ErrInvalidCredentials hides whether the identifier exists.
	ErrInvalidCredentials = errors.New("Credenciales inválidas")
	// ErrAuthUnavailable is returned when the users table cannot be read.
	ErrAuthUnavailable = errors.New("Error del sistema durante la autenticación")
	// ErrUnauthenticated is returned when an operation needs a session and there is none.
	ErrUnauthenticated = errors.New("Usuario no autenticado")
)

// RequestMeta carries client details recorded in the audit trail.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// CredentialStore matches login attempts against the users table.
type CredentialStore struct {
	users  repository.UserRepository
	logger zerolog.Logger
}

// NewCredentialStore constructs a credential store over the users repository.
func NewCredentialStore(users repository.UserRepository, logger zerolog.Logger) *CredentialStore {
	return &CredentialStore{
		users:  users,
		logger: logger.With().Str("component", "credential_store").Logger(),
	}
}

// Authenticate returns the first row whose email or alias equals identifier and whose
// secret matches.
func (c *CredentialStore) Authenticate(ctx context.Context, identifier, secret string) (models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return models.User{}, ErrMissingCredentials
	}

	users, err := c.users.List(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to load users table")
		return models.User{}, ErrAuthUnavailable
	}

	for _, user := range users {
		if user.Email != identifier && (user.Alias == "" || user.Alias != identifier) {
			continue
		}
		if secretMatches(user.Secret, secret) {
			return user, nil
		}
	}
	return models.User{}, ErrInvalidCredentials
}

// secretMatches verifies bcrypt hashes and falls back to a constant-time comparison for
// legacy plaintext rows.
func secretMatches(stored, provided string) bool {
	if stored == "" {
		return false
	}
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(provided)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(provided)) == 1
}

func isBcryptHash(value string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}

// Authenticator resolves login attempts to users.
type Authenticator interface {
	Authenticate(ctx context.Context, identifier, secret string) (models.User, error)
}

// AuthService handles login and logout for a client scope.
type AuthService interface {
	Login(ctx context.Context, scope, identifier, secret string, meta RequestMeta) (Session, error)
	Logout(ctx context.Context, scope string, meta RequestMeta) error
	CurrentUser(ctx context.Context, scope string) (Session, bool)
}

type authService struct {
	credentials Authenticator
	sessions    SessionStore
	audit       AuditService
	logger      zerolog.Logger
}

// NewAuthService wires credential checks, sessions and the audit trail.
func NewAuthService(credentials Authenticator, sessions SessionStore, audit AuditService, logger zerolog.Logger) AuthService {
	return &authService{
		credentials: credentials,
		sessions:    sessions,
		audit:       audit,
		logger:      logger.With().Str("component", "auth_service").Logger(),
	}
}

func (s *authService) Login(ctx context.Context, scope, identifier, secret string, meta RequestMeta) (Session, error) {
	identifier = strings.TrimSpace(identifier)

	user, err := s.credentials.Authenticate(ctx, identifier, secret)
	if err != nil {
		outcome := "failed"
		if errors.Is(err, ErrAuthUnavailable) {
			outcome = "error"
		}
		observability.LoginAttempts().WithLabelValues(outcome).Inc()
		s.audit.Log(ctx, AuditEntry{
			User:      identifier,
			Action:    ActionLoginFailed,
			Details:   "Intento fallido para: " + identifier,
			IP:        meta.IP,
			UserAgent: meta.UserAgent,
		})
		return Session{}, err
	}

	session, err := s.sessions.Create(ctx, scope, user)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to create session")
		observability.LoginAttempts().WithLabelValues("error").Inc()
		s.audit.Log(ctx, AuditEntry{
			User:      user.Email,
			Action:    ActionLoginFailed,
			Details:   "Error creando sesión para: " + identifier,
			IP:        meta.IP,
			UserAgent: meta.UserAgent,
		})
		return Session{}, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}

	observability.LoginAttempts().WithLabelValues("success").Inc()
	observability.SessionEvents().WithLabelValues("opened").Inc()
	s.audit.Log(ctx, AuditEntry{
		User:      session.Email,
		Action:    ActionLoginSuccess,
		Details:   fmt.Sprintf("Usuario %s autenticado (usó: %s)", session.Alias, identifier),
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})
	return session, nil
}

func (s *authService) Logout(ctx context.Context, scope string, meta RequestMeta) error {
	session, ok := s.sessions.Read(ctx, scope)

	entry := AuditEntry{Action: ActionLogout, Details: "Sesión cerrada", IP: meta.IP, UserAgent: meta.UserAgent}
	if ok {
		entry.User = session.Email
		entry.Details = "Sesión cerrada para " + session.Alias
	}

	if err := s.sessions.Destroy(ctx, scope); err != nil {
		s.logger.Error().Err(err).Msg("failed to destroy session")
		entry.Details += " (error: " + err.Error() + ")"
		s.audit.Log(ctx, entry)
		return err
	}

	if ok {
		observability.SessionEvents().WithLabelValues("closed").Inc()
	}
	s.audit.Log(ctx, entry)
	return nil
}

func (s *authService) CurrentUser(ctx context.Context, scope string) (Session, bool) {
	return s.sessions.Read(ctx, scope)
}
