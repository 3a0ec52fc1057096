package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application
type Config struct {
	Port              string
	AllowedOrigins    []string
	LogLevel          string
	Environment       string
	DatabaseURL       string
	RedisURL          string
	AMQPURL           string
	AMQPExchange      string
	OperatorJWTSecret string

	// ContactSealingKey is a hex encoded 32 byte key. When empty, raw entrant
	// emails are not retained and winners must be correlated manually.
	ContactSealingKey string

	// SignatureMode is "presence" or "hmac".
	SignatureMode string

	EntryRateLimitPerMinute int
	PromoCacheTTL           time.Duration
	IdempotencyTTL          time.Duration
	LifecycleSchedule       string
	RequestTimeout          time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:                    getEnv("PORT", "8080"),
		AllowedOrigins:          parseOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		Environment:             getEnv("ENVIRONMENT", "production"),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		RedisURL:                getEnv("REDIS_URL", ""),
		AMQPURL:                 getEnv("AMQP_URL", ""),
		AMQPExchange:            getEnv("AMQP_EXCHANGE", "rafl.events"),
		OperatorJWTSecret:       getEnv("OPERATOR_JWT_SECRET", ""),
		ContactSealingKey:       getEnv("CONTACT_SEALING_KEY", ""),
		SignatureMode:           strings.ToLower(getEnv("SIGNATURE_MODE", "presence")),
		EntryRateLimitPerMinute: getIntEnv("ENTRY_RATE_LIMIT_PER_MINUTE", 600),
		PromoCacheTTL:           getDurationEnv("PROMO_CACHE_TTL", 30*time.Second),
		IdempotencyTTL:          getDurationEnv("IDEMPOTENCY_TTL", 24*time.Hour),
		LifecycleSchedule:       getEnv("LIFECYCLE_SCHEDULE", "@every 1m"),
		RequestTimeout:          getDurationEnv("REQUEST_TIMEOUT", 15*time.Second),
	}, nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// parseOrigins parses comma-separated origins into a slice
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
