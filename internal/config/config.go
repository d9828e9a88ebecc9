package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName        string
	AppVersion     string
	AppEnv         string
	AppPort        string
	AppTimezone    string
	DatabaseURL    string
	RedisURL       string
	NATSURL        string
	SessionTimeout time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	MaxBatchSize   int

	ModuleTokenSecret string
	ModuleTokenTTL    time.Duration

	FirebaseProjectID  string
	FirebaseCollection string
	FirebaseSecret     string
	FirestoreEndpoint  string
	OAuthTokenURL      string
	FirestoreMaxPerSec int

	SheetsWorkbook   string
	SheetUsers       string
	SheetParameters  string
	StorageRoot      string
	LoginRatePerMin  int
	CloudinaryConfig CloudinaryConfig
}

// CloudinaryConfig groups the credentials used for report storage.
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

// Enabled reports whether all credentials are present.
func (c CloudinaryConfig) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Location resolves the configured business time zone, falling back to UTC.
func (c Config) Location() *time.Location {
	if c.AppTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.AppTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GESTION")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Sistema Gestión Educativa Centralizado")
	v.SetDefault("app.version", "2.0.0")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.timezone", "Europe/Madrid")
	v.SetDefault("app.max_retries", 3)
	v.SetDefault("app.retry_delay", "1s")
	v.SetDefault("app.max_batch_size", 10)
	v.SetDefault("session.timeout", "30m")
	v.SetDefault("module_token.ttl", "15m")
	v.SetDefault("firebase.collection", "db_cursos")
	v.SetDefault("firebase.endpoint", "https://firestore.googleapis.com/v1")
	v.SetDefault("oauth.token_url", "https://oauth2.googleapis.com/token")
	v.SetDefault("firestore.max_requests_per_second", 3)
	v.SetDefault("sheets.workbook", "data/gestion.xlsx")
	v.SetDefault("sheets.users", "USUARIOS")
	v.SetDefault("sheets.parameters", "PARAMETROS")
	v.SetDefault("storage.root_folder", "aula-virtual")
	v.SetDefault("login.rate_per_minute", 10)
	v.SetDefault("database.url", "sqlite://gestion.db")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
}

func fromViper(v *viper.Viper) (Config, error) {
	sessionTimeout, err := parseDuration(v, "session.timeout")
	if err != nil {
		return Config{}, err
	}
	tokenTTL, err := parseDuration(v, "module_token.ttl")
	if err != nil {
		return Config{}, err
	}
	retryDelay, err := parseDuration(v, "app.retry_delay")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppVersion:         v.GetString("app.version"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		AppTimezone:        v.GetString("app.timezone"),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		SessionTimeout:     sessionTimeout,
		MaxRetries:         v.GetInt("app.max_retries"),
		RetryDelay:         retryDelay,
		MaxBatchSize:       v.GetInt("app.max_batch_size"),
		ModuleTokenSecret:  v.GetString("module_token.secret"),
		ModuleTokenTTL:     tokenTTL,
		FirebaseProjectID:  v.GetString("firebase.project_id"),
		FirebaseCollection: v.GetString("firebase.collection"),
		FirebaseSecret:     v.GetString("firebase.secret"),
		FirestoreEndpoint:  strings.TrimRight(v.GetString("firebase.endpoint"), "/"),
		OAuthTokenURL:      v.GetString("oauth.token_url"),
		FirestoreMaxPerSec: v.GetInt("firestore.max_requests_per_second"),
		SheetsWorkbook:     v.GetString("sheets.workbook"),
		SheetUsers:         v.GetString("sheets.users"),
		SheetParameters:    v.GetString("sheets.parameters"),
		StorageRoot:        v.GetString("storage.root_folder"),
		LoginRatePerMin:    v.GetInt("login.rate_per_minute"),
		CloudinaryConfig: CloudinaryConfig{
			CloudName: v.GetString("cloudinary.cloud_name"),
			APIKey:    v.GetString("cloudinary.api_key"),
			APISecret: v.GetString("cloudinary.api_secret"),
		},
	}

	if cfg.ModuleTokenSecret == "" {
		return Config{}, fmt.Errorf("module token secret must be provided")
	}

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 10
	}
	if cfg.FirestoreMaxPerSec <= 0 {
		cfg.FirestoreMaxPerSec = 3
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
