package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Chat         ChatConfig
	Notification NotificationConfig
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

// PostgresConfig holds DB connection values. An empty DSN selects the in-memory
// store, which is populated from DevSeedFile.
type PostgresConfig struct {
	DSN            string
	DevSeedFile    string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	LockEnabled    bool
	LockTTLSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
}

// AuthConfig defines session token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// ChatConfig carries the messaging rules.
type ChatConfig struct {
	EditWindowMinutes      int
	PinLimit               int
	MaxContentLength       int
	MarkReadBatchMax       int
	DefaultPageSize        int
	MaxPageSize            int
	AllowSendToClosed      bool
	RedactDeleted          bool
	SummaryLimit           int
	WelcomeListingTemplate string
	WelcomeRfqTemplate     string
	WelcomeGeneralTemplate string
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "marketplace-chat"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			DevSeedFile:    os.Getenv("CHAT_DEV_SEED_FILE"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:       os.Getenv("REDIS_PASSWORD"),
			DB:             redisDB,
			LockEnabled:    getEnvAsBool("REDIS_LOCK_ENABLED", false),
			LockTTLSeconds: getEnvAsInt("REDIS_LOCK_TTL_SECONDS", 5),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Chat: ChatConfig{
			EditWindowMinutes:      getEnvAsInt("CHAT_EDIT_WINDOW_MINUTES", 15),
			PinLimit:               getEnvAsInt("CHAT_PIN_LIMIT", 3),
			MaxContentLength:       getEnvAsInt("CHAT_MAX_CONTENT_LENGTH", 5000),
			MarkReadBatchMax:       getEnvAsInt("CHAT_MARK_READ_BATCH_MAX", 100),
			DefaultPageSize:        getEnvAsInt("CHAT_DEFAULT_PAGE_SIZE", 20),
			MaxPageSize:            getEnvAsInt("CHAT_MAX_PAGE_SIZE", 100),
			AllowSendToClosed:      getEnvAsBool("CHAT_ALLOW_SEND_TO_CLOSED", false),
			RedactDeleted:          getEnvAsBool("CHAT_REDACT_DELETED", false),
			SummaryLimit:           getEnvAsInt("CHAT_SUMMARY_LIMIT", 10),
			WelcomeListingTemplate: getEnv("CHAT_WELCOME_LISTING_TEMPLATE", "Hello! Thanks for reaching out about your listing \"{title}\". How can we help?"),
			WelcomeRfqTemplate:     getEnv("CHAT_WELCOME_RFQ_TEMPLATE", "Hello! We received your request for quote \"{title}\". An admin will follow up here."),
			WelcomeGeneralTemplate: getEnv("CHAT_WELCOME_GENERAL_TEMPLATE", "Hello! How can we help you today?"),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
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

// LockTTL returns the expiry applied to distributed room locks.
func (r RedisConfig) LockTTL() time.Duration {
	if r.LockTTLSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(r.LockTTLSeconds) * time.Second
}

// EditWindow returns how long a sender may edit or delete a message.
func (c ChatConfig) EditWindow() time.Duration {
	if c.EditWindowMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.EditWindowMinutes) * time.Minute
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
