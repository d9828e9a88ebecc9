package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gestion-educativa-api/internal/models"
	"github.com/noah-isme/gestion-educativa-api/internal/repository"
)

// Audit actions.
const (
	ActionLoginSuccess = "LOGIN_SUCCESS"
	ActionLoginFailed  = "LOGIN_FAILED"
	ActionLogout       = "LOGOUT"
	ActionModuleAccess = "MODULE_ACCESS"
	ActionDirectAccess = "DIRECT_ACCESS"
	ActionTokenValid   = "TOKEN_VALID"
	ActionTokenInvalid = "TOKEN_INVALID"
)

const (
	auditTimestampLayout = "02/01/2006 15:04:05"
	auditDefaultUser     = "sistema"
	auditDefaultIP       = "unknown"
)

// AuditEntry is one event to record.
type AuditEntry struct {
	User      string
	Action    string
	Details   string
	IP        string
	UserAgent string
}

// AuditPublisher fans audit events out to other consumers. *nats.Conn satisfies it.
type AuditPublisher interface {
	Publish(subject string, data []byte) error
}

// AuditService appends to the audit trail. Logging never fails the caller.
type AuditService interface {
	Log(ctx context.Context, entry AuditEntry)
	Recent(ctx context.Context, limit int) ([]models.AuditLog, error)
}

type auditService struct {
	repo      repository.AuditLogRepository
	publisher AuditPublisher
	subject   string
	location  *time.Location
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAuditService constructs the audit logger. publisher may be nil.
func NewAuditService(repo repository.AuditLogRepository, publisher AuditPublisher, subject string, location *time.Location, logger zerolog.Logger) AuditService {
	if location == nil {
		location = time.UTC
	}
	if subject == "" {
		subject = "gestion.audit"
	}
	return &auditService{
		repo:      repo,
		publisher: publisher,
		subject:   subject,
		location:  location,
		logger:    logger.With().Str("component", "audit_service").Logger(),
		now:       time.Now,
	}
}

func (s *auditService) Log(ctx context.Context, entry AuditEntry) {
	record := models.AuditLog{
		Timestamp: s.now().In(s.location).Format(auditTimestampLayout),
		User:      defaultString(entry.User, auditDefaultUser),
		Action:    entry.Action,
		Details:   entry.Details,
		IP:        defaultString(entry.IP, auditDefaultIP),
		UserAgent: defaultString(entry.UserAgent, s.location.String()),
	}

	if s.repo != nil {
		if err := s.repo.Create(ctx, &record); err != nil {
			s.logger.Warn().Err(err).Str("action", record.Action).Msg("failed to persist audit entry")
		}
	}

	if s.publisher != nil {
		if payload, err := json.Marshal(record); err == nil {
			if err := s.publisher.Publish(s.subject, payload); err != nil {
				s.logger.Warn().Err(err).Str("action", record.Action).Msg("failed to publish audit entry")
			}
		}
	}

	s.logger.Info().Str("action", record.Action).Str("user", record.User).Msg("audit")
}

func (s *auditService) Recent(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if s.repo == nil {
		return []models.AuditLog{}, nil
	}
	switch {
	case limit <= 0:
		limit = 50
	case limit > 200:
		limit = 200
	}
	return s.repo.List(ctx, repository.AuditLogFilter{Limit: limit})
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
