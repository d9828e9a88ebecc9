package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gestion-educativa-api/internal/models"
	"github.com/noah-isme/gestion-educativa-api/internal/repository"
)

type publisherStub struct {
	subject  string
	messages [][]byte
	err      error
}

func (p *publisherStub) Publish(subject string, data []byte) error {
	p.subject = subject
	p.messages = append(p.messages, data)
	return p.err
}

func setupAuditService(t *testing.T, publisher AuditPublisher) (*auditService, repository.AuditLogRepository) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AuditLog{}))

	madrid, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	repo := repository.NewAuditLogRepository(db)
	svc := NewAuditService(repo, publisher, "", madrid, testLogger()).(*auditService)
	svc.now = func() time.Time { return time.Date(2024, 3, 4, 9, 30, 15, 0, time.UTC) }
	return svc, repo
}

func TestAuditServiceAppliesDefaults(t *testing.T) {
	svc, repo := setupAuditService(t, nil)
	ctx := context.Background()

	svc.Log(ctx, AuditEntry{Action: ActionDirectAccess, Details: "Acceso directo"})

	logs, err := repo.List(ctx, repository.AuditLogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "04/03/2024 10:30:15", logs[0].Timestamp)
	require.Equal(t, "sistema", logs[0].User)
	require.Equal(t, "unknown", logs[0].IP)
	require.Equal(t, "Europe/Madrid", logs[0].UserAgent)
	require.Equal(t, ActionDirectAccess, logs[0].Action)
}

func TestAuditServicePublishesEntries(t *testing.T) {
	publisher := &publisherStub{}
	svc, _ := setupAuditService(t, publisher)

	svc.Log(context.Background(), AuditEntry{User: "ana@example.com", Action: ActionLoginSuccess, IP: "10.0.0.1", UserAgent: "curl"})

	require.Equal(t, "gestion.audit", publisher.subject)
	require.Len(t, publisher.messages, 1)

	var published models.AuditLog
	require.NoError(t, json.Unmarshal(publisher.messages[0], &published))
	require.Equal(t, "ana@example.com", published.User)
	require.Equal(t, "curl", published.UserAgent)
}

func TestAuditServiceSwallowsPublishFailures(t *testing.T) {
	svc, _ := setupAuditService(t, &publisherStub{err: errors.New("nats down")})
	ctx := context.Background()

	require.NotPanics(t, func() {
		svc.Log(ctx, AuditEntry{Action: ActionLogout})
	})

	recent, err := svc.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
}
