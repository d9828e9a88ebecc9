package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gestion-educativa-api/internal/models"
)

func setupAuditTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AuditLog{}))
	return db
}

func TestAuditLogRepositoryAppendsAndLists(t *testing.T) {
	db := setupAuditTestDB(t)
	repo := NewAuditLogRepository(db)
	ctx := context.Background()

	entries := []models.AuditLog{
		{Timestamp: "01/03/2025 10:00:00", User: "admin@test.com", Action: "LOGIN_SUCCESS", IP: "10.0.0.1"},
		{Timestamp: "01/03/2025 10:01:00", User: "admin@test.com", Action: "MODULE_ACCESS", Details: "CONTROL_ASISTENCIA"},
		{Timestamp: "01/03/2025 10:02:00", User: "otro@test.com", Action: "LOGIN_FAILED"},
	}
	for i := range entries {
		require.NoError(t, repo.Create(ctx, &entries[i]))
	}

	all, err := repo.List(ctx, AuditLogFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "LOGIN_FAILED", all[0].Action, "newest entry first")

	mine, err := repo.List(ctx, AuditLogFilter{User: "admin@test.com", Limit: 1})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "MODULE_ACCESS", mine[0].Action)
}
