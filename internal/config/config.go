package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App            AppConfig
	Postgres       PostgresConfig
	Redis          RedisConfig
	Logger         LoggerConfig
	Auth           AuthConfig
	Notification   NotificationConfig
	Classification ClassificationConfig
	Directory      DirectoryConfig
	Wizard         WizardConfig
	Telemetry      TelemetryConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom                string
	WebhookURL               string
	WebhookQueueSize         int
	WebhookMaxElapsedSeconds int
}

// WebhookMaxElapsed bounds retries of a single webhook delivery.
func (n NotificationConfig) WebhookMaxElapsed() time.Duration {
	return time.Duration(n.WebhookMaxElapsedSeconds) * time.Second
}

// ClassificationConfig points at the external AI priority service.
type ClassificationConfig struct {
	URL               string
	TimeoutSeconds    int
	RejectionStatuses []string
}

// DirectoryConfig points at the user-directory lookup used to resolve reporter ids.
type DirectoryConfig struct {
	URL            string
	TimeoutSeconds int
}

// WizardConfig controls the ticket submission wizard.
type WizardConfig struct {
	DraftBackend    string
	DraftTTLMinutes int
	DraftKeyPrefix  string
	CommitTarget    string
	ExposeDegraded  bool
}

// TelemetryConfig names the tracer scope.
type TelemetryConfig struct {
	ServiceName string
}

const (
	DraftBackendMemory = "memory"
	DraftBackendRedis  = "redis"

	CommitTargetClassification = "classification"
	CommitTargetStore          = "store"
)

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	port := getEnv("APP_PORT", "8080")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  port,
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 60),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60*24),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			EmailFrom:                getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL:               getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookQueueSize:         getEnvAsInt("NOTIFY_WEBHOOK_QUEUE", 256),
			WebhookMaxElapsedSeconds: getEnvAsInt("NOTIFY_WEBHOOK_MAX_ELAPSED_SECONDS", 30),
		},
		Classification: ClassificationConfig{
			URL:               os.Getenv("CLASSIFICATION_URL"),
			TimeoutSeconds:    getEnvAsInt("CLASSIFICATION_TIMEOUT_SECONDS", 20),
			RejectionStatuses: getEnvAsList("CLASSIFICATION_REJECTION_STATUSES", []string{"Deu algum erro"}),
		},
		Directory: DirectoryConfig{
			URL:            getEnv("DIRECTORY_URL", "http://127.0.0.1:"+port+"/api/users/by-email"),
			TimeoutSeconds: getEnvAsInt("DIRECTORY_TIMEOUT_SECONDS", 5),
		},
		Wizard: WizardConfig{
			DraftBackend:    strings.ToLower(getEnv("WIZARD_DRAFT_BACKEND", DraftBackendRedis)),
			DraftTTLMinutes: getEnvAsInt("DRAFT_TTL_MINUTES", 24*60),
			DraftKeyPrefix:  getEnv("DRAFT_KEY_PREFIX", "wizard:draft"),
			CommitTarget:    strings.ToLower(getEnv("COMMIT_TARGET", CommitTargetClassification)),
			ExposeDegraded:  getEnvAsBool("WIZARD_EXPOSE_DEGRADED", false),
		},
		Telemetry: TelemetryConfig{
			ServiceName: getEnv("OTEL_SERVICE_NAME", "helpdesk"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Wizard.DraftBackend {
	case DraftBackendMemory, DraftBackendRedis:
	default:
		return fmt.Errorf("invalid WIZARD_DRAFT_BACKEND %q", c.Wizard.DraftBackend)
	}
	switch c.Wizard.CommitTarget {
	case CommitTargetClassification, CommitTargetStore:
	default:
		return fmt.Errorf("invalid COMMIT_TARGET %q", c.Wizard.CommitTarget)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the per-call deadline for the classification service.
func (c ClassificationConfig) Timeout() time.Duration {
	return secondsOr(c.TimeoutSeconds, 20*time.Second)
}

// Timeout returns the overall budget for one identity lookup, retries included.
func (d DirectoryConfig) Timeout() time.Duration {
	return secondsOr(d.TimeoutSeconds, 5*time.Second)
}

// DraftTTL returns how long an idle draft survives.
func (w WizardConfig) DraftTTL() time.Duration {
	if w.DraftTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(w.DraftTTLMinutes) * time.Minute
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
