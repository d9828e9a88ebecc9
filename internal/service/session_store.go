package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gestion-educativa-api/internal/models"
	"github.com/noah-isme/gestion-educativa-api/internal/observability"
)

// ErrMissingScope is returned when a session operation has no client scope to bind to.
var ErrMissingScope = errors.New("session scope is required")

// Session is the identity kept for an authenticated client.
type Session struct {
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Alias        string    `json:"alias"`
	SessionID    string    `json:"sessionId"`
	LoginTime    time.Time `json:"loginTime"`
	LastActivity time.Time `json:"lastActivity"`
}

// SessionStore keeps sessions in Redis: the payload under session:<id> and the client's
// current session pointer under session:current:<scope>.
type SessionStore interface {
	Create(ctx context.Context, scope string, user models.User) (Session, error)
	// Read resolves the current session of scope, evicting it when idle for longer than
	// the timeout. Lookup failures are reported as no session.
	Read(ctx context.Context, scope string) (Session, bool)
	Destroy(ctx context.Context, scope string) error
}

type sessionStore struct {
	cache   *redis.Client
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time
	newID   func() string
}

// NewSessionStore constructs the Redis-backed session store. Payload and pointer share the
// idle timeout as TTL and both are refreshed on every successful read.
func NewSessionStore(cache *redis.Client, timeout time.Duration, logger zerolog.Logger) SessionStore {
	return newSessionStore(cache, timeout, logger, time.Now)
}

func newSessionStore(cache *redis.Client, timeout time.Duration, logger zerolog.Logger, now func() time.Time) *sessionStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &sessionStore{
		cache:   cache,
		timeout: timeout,
		logger:  logger.With().Str("component", "session_store").Logger(),
		now:     now,
		newID:   uuid.NewString,
	}
}

func sessionKey(id string) string {
	return "session:" + id
}

func currentSessionKey(scope string) string {
	return "session:current:" + scope
}

func (s *sessionStore) Create(ctx context.Context, scope string, user models.User) (Session, error) {
	if scope == "" {
		return Session{}, ErrMissingScope
	}

	now := s.now()
	session := Session{
		Email:        user.Email,
		Name:         user.DisplayName(),
		Alias:        user.LoginAlias(),
		SessionID:    s.newID(),
		LoginTime:    now,
		LastActivity: now,
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return Session{}, fmt.Errorf("encode session: %w", err)
	}

	pipe := s.cache.TxPipeline()
	pipe.Set(ctx, sessionKey(session.SessionID), payload, s.timeout)
	pipe.Set(ctx, currentSessionKey(scope), session.SessionID, s.timeout)
	if _, err := pipe.Exec(ctx); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}

	return session, nil
}

func (s *sessionStore) Read(ctx context.Context, scope string) (Session, bool) {
	if scope == "" {
		return Session{}, false
	}

	pointer := currentSessionKey(scope)
	id, err := s.cache.Get(ctx, pointer).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to resolve current session")
		}
		return Session{}, false
	}

	raw, err := s.cache.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.evict(ctx, pointer)
		} else {
			s.logger.Warn().Err(err).Str("session_id", id).Msg("failed to load session")
		}
		return Session{}, false
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		s.logger.Warn().Err(err).Str("session_id", id).Msg("discarding unreadable session")
		s.evict(ctx, pointer, sessionKey(id))
		return Session{}, false
	}

	now := s.now()
	if now.Sub(session.LastActivity) > s.timeout {
		s.evict(ctx, pointer, sessionKey(id))
		observability.SessionEvents().WithLabelValues("expired").Inc()
		return Session{}, false
	}

	if now.After(session.LastActivity) {
		session.LastActivity = now
	}

	payload, err := json.Marshal(session)
	if err == nil {
		pipe := s.cache.Pipeline()
		pipe.Set(ctx, sessionKey(id), payload, s.timeout)
		pipe.Expire(ctx, pointer, s.timeout)
		if _, err := pipe.Exec(ctx); err != nil {
			s.logger.Warn().Err(err).Str("session_id", id).Msg("failed to refresh session")
		}
	}

	return session, true
}

func (s *sessionStore) Destroy(ctx context.Context, scope string) error {
	if scope == "" {
		return nil
	}

	pointer := currentSessionKey(scope)
	id, err := s.cache.Get(ctx, pointer).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("resolve current session: %w", err)
	}

	keys := []string{pointer}
	if id != "" {
		keys = append(keys, sessionKey(id))
	}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *sessionStore) evict(ctx context.Context, keys ...string) {
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to evict session keys")
	}
}
