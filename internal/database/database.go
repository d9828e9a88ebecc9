package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the audit database. URLs starting with sqlite:// or file: use SQLite; anything
// else is treated as a PostgreSQL DSN.
func Connect(url string) (*gorm.DB, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("database url must not be empty")
	}

	config := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	var (
		db  *gorm.DB
		err error
	)
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		db, err = gorm.Open(sqlite.Open(strings.TrimPrefix(url, "sqlite://")), config)
	case strings.HasPrefix(url, "file:"):
		db, err = gorm.Open(sqlite.Open(url), config)
	default:
		db, err = gorm.Open(postgres.Open(url), config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}
