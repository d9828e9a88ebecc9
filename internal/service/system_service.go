package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gestion-educativa-api/internal/config"
	"github.com/noah-isme/gestion-educativa-api/internal/repository"
)

// SheetChecker probes whether a sheet of the workbook can be read.
type SheetChecker interface {
	Check(ctx context.Context, sheet string) error
}

// ConnectionTester runs a round trip against the document store.
type ConnectionTester interface {
	TestConnection(ctx context.Context, owner *Session) error
}

// SheetFlags reports which sheet identifiers are configured.
type SheetFlags struct {
	Users      bool `json:"usuarios"`
	Parameters bool `json:"parametros"`
}

// ConfigFlags reports which integrations are configured.
type ConfigFlags struct {
	Firebase  bool       `json:"firebase"`
	Sheets    SheetFlags `json:"sheets"`
	Storage   bool       `json:"almacenamiento"`
	AuditSink string     `json:"auditoria"`
}

// SystemStatus is the result of a self test.
type SystemStatus struct {
	Timestamp   time.Time         `json:"timestamp"`
	App         string            `json:"app"`
	Version     string            `json:"version"`
	Config      ConfigFlags       `json:"config"`
	SheetAccess map[string]string `json:"accesoHojas"`
	Parameters  int               `json:"parametros"`
	Firestore   string            `json:"firestore"`
	User        *Session          `json:"user"`
}

// SystemService reports the readiness of configured integrations.
type SystemService interface {
	Test(ctx context.Context, current *Session) SystemStatus
}

type systemService struct {
	cfg        config.Config
	sheets     SheetChecker
	parameters repository.ParameterRepository
	documents  ConnectionTester
	logger     zerolog.Logger
	now        func() time.Time
}

// NewSystemService constructs the self-test service. Any dependency may be nil when the
// matching integration is not configured.
func NewSystemService(cfg config.Config, sheets SheetChecker, parameters repository.ParameterRepository, documents ConnectionTester, logger zerolog.Logger) SystemService {
	return &systemService{
		cfg:        cfg,
		sheets:     sheets,
		parameters: parameters,
		documents:  documents,
		logger:     logger.With().Str("component", "system_service").Logger(),
		now:        time.Now,
	}
}

func (s *systemService) Test(ctx context.Context, current *Session) SystemStatus {
	status := SystemStatus{
		Timestamp: s.now().UTC(),
		App:       s.cfg.AppName,
		Version:   s.cfg.AppVersion,
		Config: ConfigFlags{
			Firebase: s.cfg.FirebaseProjectID != "" || s.cfg.FirebaseSecret != "",
			Sheets: SheetFlags{
				Users:      s.cfg.SheetUsers != "",
				Parameters: s.cfg.SheetParameters != "",
			},
			Storage:   s.cfg.CloudinaryConfig.Enabled(),
			AuditSink: auditSink(s.cfg.DatabaseURL),
		},
		SheetAccess: map[string]string{},
		User:        current,
	}

	for _, sheet := range []string{s.cfg.SheetUsers, s.cfg.SheetParameters} {
		if sheet == "" {
			continue
		}
		if s.sheets == nil {
			status.SheetAccess[sheet] = "no configurado"
			continue
		}
		if err := s.sheets.Check(ctx, sheet); err != nil {
			s.logger.Warn().Err(err).Str("sheet", sheet).Msg("sheet check failed")
			status.SheetAccess[sheet] = "error"
			continue
		}
		status.SheetAccess[sheet] = "ok"
	}

	if s.parameters != nil {
		params, err := s.parameters.All(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to read parameters")
		} else {
			status.Parameters = len(params)
		}
	}

	status.Firestore = "no configurado"
	if s.documents != nil {
		if err := s.documents.TestConnection(ctx, current); err != nil {
			s.logger.Warn().Err(err).Msg("document store round trip failed")
			status.Firestore = "error"
		} else {
			status.Firestore = "ok"
		}
	}

	return status
}

func auditSink(databaseURL string) string {
	switch {
	case databaseURL == "":
		return "no configurado"
	case strings.HasPrefix(databaseURL, "sqlite://"), strings.HasPrefix(databaseURL, "file:"):
		return "base de datos (sqlite)"
	default:
		return "base de datos (postgres)"
	}
}
