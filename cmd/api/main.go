package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/noah-isme/gestion-educativa-api/internal/config"
	"github.com/noah-isme/gestion-educativa-api/internal/database"
	"github.com/noah-isme/gestion-educativa-api/internal/models"
	"github.com/noah-isme/gestion-educativa-api/internal/repository"
	"github.com/noah-isme/gestion-educativa-api/internal/service"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "gestion-api",
		Short:        "Centralised education management backend",
		SilenceUsage: true,
		RunE:         runServe,
	}

	rootCmd.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newCheckCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func bootstrap() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}

	level := zerolog.InfoLevel
	if cfg.AppEnv != "production" {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("app", cfg.AppName).Logger()
	return cfg, logger, nil
}

func openDatabase(cfg config.Config) (*gorm.DB, error) {
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&models.AuditLog{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the audit log table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := bootstrap()
			if err != nil {
				return err
			}
			if _, err := openDatabase(cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "audit log schema is up to date")
			return nil
		},
	}
}

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report configuration, sheet access and document API connectivity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}

			workbook := repository.NewWorkbook(cfg.SheetsWorkbook)
			parameters := repository.NewSheetParameterRepository(workbook, cfg.SheetParameters)

			client, namespace, err := connectFirestore(cfg, logger)
			if err != nil {
				return err
			}
			var documents service.ConnectionTester
			if client != nil {
				documents = service.NewDocumentService(client, nil, namespace, cfg.MaxBatchSize, logger)
			}

			status := service.NewSystemService(cfg, workbook, parameters, documents, logger).Test(cmd.Context(), nil)

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(status)
		},
	}
}
