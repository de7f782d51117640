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
	AI           AIConfig
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

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
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

// ChatConfig tunes the conversational widget.
type ChatConfig struct {
	EscalationThreshold  int
	HandoffSubjectMaxLen int
	FallbackText         string
	GenerationTimeoutSec int
	PresenceTTLMinutes   int
}

// AIConfig points at the chat-completions backend.
type AIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// NotificationConfig controls outbound notification delivery. Email is
// disabled until SMTPAddr and EmailTo are set; the webhook is disabled
// until WebhookURL is set.
type NotificationConfig struct {
	EmailFrom          string
	EmailTo            string
	SMTPAddr           string
	SMTPUser           string
	SMTPPassword       string
	WebhookURL         string
	WebhookSecret      string
	QueueSize          int
	Workers            int
	SendTimeoutSeconds int
}

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

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "supportdesk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
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
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Chat: ChatConfig{
			EscalationThreshold:  getEnvAsInt("CHAT_ESCALATION_THRESHOLD", 3),
			HandoffSubjectMaxLen: getEnvAsInt("CHAT_HANDOFF_SUBJECT_MAX_LEN", 80),
			FallbackText: getEnv("CHAT_FALLBACK_TEXT",
				"Sorry, I ran into a problem answering that. Please try again, or open a ticket so an agent can help."),
			GenerationTimeoutSec: getEnvAsInt("CHAT_GENERATION_TIMEOUT_SECONDS", 20),
			PresenceTTLMinutes:   getEnvAsInt("CHAT_PRESENCE_TTL_MINUTES", 480),
		},
		AI: AIConfig{
			BaseURL: getEnv("AI_BASE_URL", "https://api.openai.com/v1"),
			APIKey:  os.Getenv("AI_API_KEY"),
			Model:   getEnv("AI_MODEL", "gpt-4o-mini"),
		},
		Notification: NotificationConfig{
			EmailFrom:          getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			EmailTo:            os.Getenv("NOTIFY_EMAIL_TO"),
			SMTPAddr:           os.Getenv("NOTIFY_SMTP_ADDR"),
			SMTPUser:           os.Getenv("NOTIFY_SMTP_USER"),
			SMTPPassword:       os.Getenv("NOTIFY_SMTP_PASSWORD"),
			WebhookURL:         os.Getenv("NOTIFY_WEBHOOK_URL"),
			WebhookSecret:      os.Getenv("NOTIFY_WEBHOOK_SECRET"),
			QueueSize:          getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			Workers:            getEnvAsInt("NOTIFY_WORKERS", 2),
			SendTimeoutSeconds: getEnvAsInt("NOTIFY_SEND_TIMEOUT_SECONDS", 10),
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

// GenerationTimeout bounds one call to the response generator.
func (c ChatConfig) GenerationTimeout() time.Duration {
	if c.GenerationTimeoutSec <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.GenerationTimeoutSec) * time.Second
}

// PresenceTTL is how long an agent presence mark lives without renewal.
func (c ChatConfig) PresenceTTL() time.Duration {
	if c.PresenceTTLMinutes <= 0 {
		return 8 * time.Hour
	}
	return time.Duration(c.PresenceTTLMinutes) * time.Minute
}

// SendTimeout bounds one outbound notification delivery.
func (n NotificationConfig) SendTimeout() time.Duration {
	if n.SendTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n.SendTimeoutSeconds) * time.Second
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
