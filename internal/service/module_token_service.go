package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gestion-educativa-api/internal/observability"
)

// Validation reasons.
const (
	ReasonOK            = "ok"
	ReasonEmpty         = "token vacío"
	ReasonFormat        = "formato inválido"
	ReasonDigest        = "hash inválido"
	ReasonPayload       = "payload inválido"
	ReasonExpired       = "token expirado"
	ReasonModule        = "módulo no coincide"
	ReasonCacheMissing  = "token no encontrado en cache"
	ReasonCacheMismatch = "token no coincide con cache"
)

// ModuleTokenPayload is the signed content of a module token. Times are unix milliseconds.
type ModuleTokenPayload struct {
	Module    string `json:"module"`
	User      string `json:"user"`
	Alias     string `json:"alias"`
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
	Expires   int64  `json:"expires"`
}

// ValidationResult is the outcome of a token check. It never carries an error.
type ValidationResult struct {
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason"`
	User      string `json:"user,omitempty"`
	Alias     string `json:"alias,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// ModuleTokenService issues and validates short-lived module capability tokens of the form
// base64url(hmac(payload)) "." base64(payload). Each token is mirrored in Redis under
// module_token:<module>:<sessionId>.
type ModuleTokenService interface {
	Issue(ctx context.Context, module string, user *Session) (string, error)
	Validate(ctx context.Context, token, module string) ValidationResult
}

type moduleTokenService struct {
	cache  *redis.Client
	secret []byte
	ttl    time.Duration
	audit  AuditService
	logger zerolog.Logger
	now    func() time.Time
}

// NewModuleTokenService constructs the token service.
func NewModuleTokenService(cache *redis.Client, secret string, ttl time.Duration, audit AuditService, logger zerolog.Logger) ModuleTokenService {
	return newModuleTokenService(cache, secret, ttl, audit, logger, time.Now)
}

func newModuleTokenService(cache *redis.Client, secret string, ttl time.Duration, audit AuditService, logger zerolog.Logger, now func() time.Time) *moduleTokenService {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &moduleTokenService{
		cache:  cache,
		secret: []byte(secret),
		ttl:    ttl,
		audit:  audit,
		logger: logger.With().Str("component", "module_token_service").Logger(),
		now:    now,
	}
}

func moduleTokenKey(module, sessionID string) string {
	return fmt.Sprintf("module_token:%s:%s", module, sessionID)
}

func (s *moduleTokenService) Issue(ctx context.Context, module string, user *Session) (string, error) {
	if user == nil {
		return "", ErrUnauthenticated
	}
	if _, err := LookupModule(module); err != nil {
		return "", err
	}

	now := s.now()
	payload := ModuleTokenPayload{
		Module:    module,
		User:      user.Email,
		Alias:     user.Alias,
		SessionID: user.SessionID,
		Timestamp: now.UnixMilli(),
		Expires:   now.Add(s.ttl).UnixMilli(),
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode token payload: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)
	token := s.digest(encoded) + "." + encoded

	if err := s.cache.Set(ctx, moduleTokenKey(module, user.SessionID), token, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store module token: %w", err)
	}
	return token, nil
}

func (s *moduleTokenService) Validate(ctx context.Context, token, module string) ValidationResult {
	result := s.check(ctx, strings.TrimSpace(token), module)

	observability.TokenValidations().WithLabelValues(module, result.Reason).Inc()

	entry := AuditEntry{User: result.User, Action: ActionTokenInvalid}
	if result.Valid {
		entry.Action = ActionTokenValid
		entry.Details = fmt.Sprintf("Token válido para módulo %s", module)
	} else {
		entry.Details = fmt.Sprintf("Token rechazado para módulo %s: %s", module, result.Reason)
	}
	s.audit.Log(ctx, entry)

	return result
}

func (s *moduleTokenService) check(ctx context.Context, token, module string) ValidationResult {
	if token == "" {
		return ValidationResult{Reason: ReasonEmpty}
	}

	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ValidationResult{Reason: ReasonFormat}
	}

	if !hmac.Equal([]byte(s.digest(parts[1])), []byte(parts[0])) {
		return ValidationResult{Reason: ReasonDigest}
	}

	raw, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return ValidationResult{Reason: ReasonPayload}
	}
	var payload ModuleTokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ValidationResult{Reason: ReasonPayload}
	}

	denied := ValidationResult{User: payload.User, Alias: payload.Alias, SessionID: payload.SessionID}

	if s.now().UnixMilli() > payload.Expires {
		denied.Reason = ReasonExpired
		return denied
	}
	if payload.Module != module {
		denied.Reason = ReasonModule
		return denied
	}

	cached, err := s.cache.Get(ctx, moduleTokenKey(payload.Module, payload.SessionID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read cached module token")
		}
		denied.Reason = ReasonCacheMissing
		return denied
	}
	if hmac.Equal([]byte(cached), []byte(token)) {
		return ValidationResult{Valid: true, Reason: ReasonOK, User: payload.User, Alias: payload.Alias, SessionID: payload.SessionID}
	}

	denied.Reason = ReasonCacheMismatch
	return denied
}

func (s *moduleTokenService) digest(encodedPayload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(encodedPayload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
