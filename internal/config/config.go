// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is shared by the server, worker and seed binaries.
type Config struct {
	DatabaseURL string
	Port        string
	Env         string
	LogLevel    string

	JWTSecret string
	JWTTTL    time.Duration

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	ForecastCacheTTL time.Duration

	IdempotencyEnabled bool
	IdempotencyTTL     time.Duration

	PendingOrderTTL      time.Duration
	CriticalStockPercent decimal.Decimal

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	AlertEmailTo string

	WorkerPollInterval time.Duration
}

const defaultJWTSecret = "change-me-in-production"

// Load reads the environment. DATABASE_URL is required.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Port:        getEnv("APP_PORT", "8080"),
		Env:         getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		JWTSecret: getEnv("JWT_SECRET", defaultJWTSecret),
		JWTTTL:    getEnvDuration("JWT_TTL", 15*time.Minute),

		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		ForecastCacheTTL: getEnvDuration("FORECAST_CACHE_TTL", 15*time.Minute),

		IdempotencyEnabled: getEnv("IDEMPOTENCY_ENABLED", "false") == "true",
		IdempotencyTTL:     getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),

		PendingOrderTTL:      getEnvDuration("PENDING_ORDER_TTL", time.Hour),
		CriticalStockPercent: decimal.NewFromInt(int64(getEnvInt("CRITICAL_STOCK_PERCENT", 25))),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		AlertEmailTo: os.Getenv("ALERT_EMAIL_TO"),

		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required values and production safety.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL is required")
	}
	if c.IsProduction() && c.JWTSecret == defaultJWTSecret {
		return errors.New("config: JWT_SECRET must be set in production")
	}
	if c.WorkerPollInterval <= 0 {
		return fmt.Errorf("config: WORKER_POLL_INTERVAL must be positive, got %s", c.WorkerPollInterval)
	}
	return nil
}

// IsDevelopment enables pretty logging.
func (c Config) IsDevelopment() bool { return c.Env == "development" }

func (c Config) IsProduction() bool { return c.Env == "production" }

// Address is the HTTP listen address.
func (c Config) Address() string { return ":" + c.Port }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
