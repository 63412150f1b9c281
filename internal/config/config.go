// Package config handles loading and validating runtime configuration for the fitness club API.
// Configuration values (database URL, JWT secret, broker addresses) are read from environment
// variables rather than being hardcoded, so the same binary can run in dev, staging and
// production by swapping the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	// godotenv reads a .env file and loads its key=value pairs into the process environment.
	// Handy in development; in production real env vars are set by the platform.
	"github.com/joho/godotenv"
)

// DefaultJWTSecret is the development signing secret. Validate refuses it in production.
const DefaultJWTSecret = "dev-secret-change-me"

// Config holds all runtime configuration values for the application.
type Config struct {
	Port             string        // TCP port the HTTP server listens on (e.g. "8080")
	Env              string        // "development", "staging", or "production"
	DatabaseURL      string        // PostgreSQL connection string; required
	DBMaxOpenConns   int           // Upper bound on pooled connections
	DBMaxIdleConns   int
	MigrationsSource string        // golang-migrate source URL, e.g. "file://migrations"
	JWTSecret        string        // HMAC secret used to sign and verify access tokens
	JWTIssuer        string        // "iss" claim written into and required on every token
	TokenTTL         time.Duration // Lifetime of an issued access token
	RedisURL         string        // Token denylist; empty disables server-side logout
	KafkaBrokers     []string      // Domain event brokers; empty disables publishing
	KafkaTopic       string        // Topic domain events are written to
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
}

// Load reads configuration from environment variables and returns a populated Config.
// A missing .env file is fine: the error from godotenv.Load is discarded on purpose.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DBMaxOpenConns:   getIntEnv("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:   getIntEnv("DB_MAX_IDLE_CONNS", 5),
		MigrationsSource: getEnv("MIGRATIONS_SOURCE", "file://migrations"),
		JWTSecret:        getEnv("JWT_SECRET", DefaultJWTSecret),
		JWTIssuer:        getEnv("JWT_ISSUER", "fitclub-api"),
		TokenTTL:         getDurationEnv("TOKEN_TTL", 24*time.Hour),
		RedisURL:         os.Getenv("REDIS_URL"),
		KafkaBrokers:     splitAndTrim(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "fitclub.events"),
		ReadTimeout:      getDurationEnv("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:     getDurationEnv("WRITE_TIMEOUT", 10*time.Second),
		IdleTimeout:      getDurationEnv("IDLE_TIMEOUT", 60*time.Second),
	}
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate returns an error describing the first setting that would prevent a safe start.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.IsProduction() && c.JWTSecret == DefaultJWTSecret {
		return errors.New("JWT_SECRET must be set in production")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
