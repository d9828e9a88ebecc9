package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/noah-isme/gestion-educativa-api/internal/config"
	"github.com/noah-isme/gestion-educativa-api/internal/database"
	"github.com/noah-isme/gestion-educativa-api/internal/handler"
	"github.com/noah-isme/gestion-educativa-api/internal/middleware"
	"github.com/noah-isme/gestion-educativa-api/internal/observability"
	"github.com/noah-isme/gestion-educativa-api/internal/repository"
	"github.com/noah-isme/gestion-educativa-api/internal/router"
	"github.com/noah-isme/gestion-educativa-api/internal/service"
	cloud "github.com/noah-isme/gestion-educativa-api/pkg/cloudinary"
	"github.com/noah-isme/gestion-educativa-api/pkg/firestore"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		logger.Warn().Err(err).Msg("audit fan-out disabled")
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	observability.RegisterMetrics()
	validate := validator.New(validator.WithRequiredStructEnabled())
	location := cfg.Location()

	workbook := repository.NewWorkbook(cfg.SheetsWorkbook)
	userRepo := repository.NewSheetUserRepository(workbook, cfg.SheetUsers)
	parameterRepo := repository.NewSheetParameterRepository(workbook, cfg.SheetParameters)
	auditRepo := repository.NewAuditLogRepository(db)

	auditService := service.NewAuditService(auditRepo, auditPublisher(natsConn), "gestion.audit", location, logger)
	sessionStore := service.NewSessionStore(redisClient, cfg.SessionTimeout, logger)
	authService := service.NewAuthService(service.NewCredentialStore(userRepo, logger), sessionStore, auditService, logger)
	tokenService := service.NewModuleTokenService(redisClient, cfg.ModuleTokenSecret, cfg.ModuleTokenTTL, auditService, logger)

	documentClient, fallbackNamespace, err := connectFirestore(cfg, logger)
	if err != nil {
		return err
	}
	drive, err := connectDrive(cfg, logger)
	if err != nil {
		return err
	}

	var (
		documentStore   service.DocumentStore
		connectionCheck service.ConnectionTester
		limiter         *firestore.RateLimiter
		documentService service.DocumentService
	)
	if documentClient != nil {
		documentStore = documentClient
		limiter = documentClient.Limiter()
		documentService = service.NewDocumentService(documentStore, service.NewValidatorRegistry(validate), fallbackNamespace, cfg.MaxBatchSize, logger)
		connectionCheck = documentService
	}

	var reportDrive service.ReportDrive
	if drive != nil {
		reportDrive = drive
	}

	attendanceService := service.NewAttendanceService(documentStore, reportDrive, limiter, cfg.FirebaseCollection, location, logger)
	systemService := service.NewSystemService(cfg, workbook, parameterRepo, connectionCheck, logger)

	loginLimiter := middleware.RateLimit(middleware.RateLimitConfig{
		Name:         "login",
		Max:          cfg.LoginRatePerMin,
		Window:       time.Minute,
		FailuresOnly: true,
	})

	deps := router.Dependencies{
		PageHandler: handler.NewPageHandler(tokenService, auditService, handler.PageOptions{
			AppName: cfg.AppName,
			Version: cfg.AppVersion,
		}, logger),
		RPCHandler:        handler.NewRPCHandler(authService, tokenService, auditService, systemService, validate, cfg.ModuleTokenTTL, logger),
		AttendanceHandler: handler.NewAttendanceHandler(attendanceService, logger),
		HealthProbes:      healthProbes(redisClient, db, workbook, cfg.SheetUsers),
		Sessions:          sessionStore,
		ModuleTokens:      tokenService,
		LoginLimiter:      loginLimiter,
	}
	if documentService != nil {
		deps.DocumentHandler = handler.NewDocumentHandler(documentService, validate, logger)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    8 * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, ConsoleLog: cfg.AppEnv != "production"})
	router.Register(app, cfg, deps)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
	return nil
}

func connectFirestore(cfg config.Config, logger zerolog.Logger) (*firestore.Client, string, error) {
	if strings.TrimSpace(cfg.FirebaseSecret) == "" {
		logger.Warn().Msg("firebase secret not configured, document API disabled")
		return nil, "", nil
	}

	account, err := firestore.ParseServiceAccount(cfg.FirebaseSecret)
	if err != nil {
		return nil, "", fmt.Errorf("invalid firebase service account: %w", err)
	}

	projectID := cfg.FirebaseProjectID
	if projectID == "" {
		projectID = account.ProjectID
	}

	tokens := firestore.NewTokenSource(context.Background(), account, cfg.OAuthTokenURL, nil)
	client, err := firestore.NewClient(firestore.Config{
		Endpoint:   cfg.FirestoreEndpoint,
		ProjectID:  projectID,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	}, tokens, firestore.NewRateLimiter(cfg.FirestoreMaxPerSec), logger)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create firestore client: %w", err)
	}

	client.OnResponse(func(method string, status int) {
		observability.FirestoreCalls().WithLabelValues(method, strconv.Itoa(status)).Inc()
	})

	namespace, _, _ := strings.Cut(account.ClientEmail, "@")
	return client, namespace, nil
}

func connectDrive(cfg config.Config, logger zerolog.Logger) (*cloud.Drive, error) {
	if !cfg.CloudinaryConfig.Enabled() {
		logger.Warn().Msg("cloudinary not configured, attendance reports cannot be stored")
		return nil, nil
	}

	drive, err := cloud.New(cloud.Config{
		CloudName:  cfg.CloudinaryConfig.CloudName,
		APIKey:     cfg.CloudinaryConfig.APIKey,
		APISecret:  cfg.CloudinaryConfig.APISecret,
		RootFolder: cfg.StorageRoot,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudinary client: %w", err)
	}
	return drive, nil
}

func auditPublisher(conn *nats.Conn) service.AuditPublisher {
	if conn == nil {
		return nil
	}
	return conn
}

func healthProbes(cache *redis.Client, db *gorm.DB, workbook *repository.Workbook, usersSheet string) map[string]handler.HealthProbe {
	return map[string]handler.HealthProbe{
		"redis": func(ctx context.Context) error {
			return cache.Ping(ctx).Err()
		},
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"sheets": func(ctx context.Context) error {
			return workbook.Check(ctx, usersSheet)
		},
	}
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
