// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Trigger modes
const (
	TriggerModeQStash = "qstash"
	TriggerModeLocal  = "local"
)

// Config validation errors
var (
	// ErrMissingDatabaseURL is returned when DatabaseURL is empty
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
	// ErrMissingRedisURL is returned when RedisURL is empty
	ErrMissingRedisURL = errors.New("REDIS_URL is required")
	// ErrMissingAuthSecret is returned when AuthSecret is empty
	ErrMissingAuthSecret = errors.New("AUTH_SECRET is required")
	// ErrMissingSigningKey is returned when no trigger signing key is configured
	ErrMissingSigningKey = errors.New("QSTASH_CURRENT_SIGNING_KEY is required")
	// ErrMissingQStashToken is returned when qstash mode lacks a token
	ErrMissingQStashToken = errors.New("QSTASH_TOKEN is required in qstash trigger mode")
	// ErrInvalidTriggerMode is returned for an unknown TRIGGER_MODE
	ErrInvalidTriggerMode = errors.New("TRIGGER_MODE must be qstash or local")
	// ErrMissingBaseURL is returned when PublicBaseURL is empty
	ErrMissingBaseURL = errors.New("PUBLIC_BASE_URL is required")
)

// Config holds the server configuration.
type Config struct {
	DatabaseURL string
	RedisURL    string
	Port        string

	// PublicBaseURL is the origin the trigger service calls back (e.g. "https://api.linkboard.dev").
	PublicBaseURL string

	// AuthSecret verifies HS256 user bearer tokens.
	AuthSecret string

	QStashURL               string
	QStashToken             string
	QStashCurrentSigningKey string
	QStashNextSigningKey    string

	// TriggerMode selects QStash or in-process timers for the batch trigger.
	TriggerMode string

	// UpvoteBatchSize bounds operations drained per action in one batch pass.
	UpvoteBatchSize int

	// UpvoteFlagTTL is how long a user's vote flag is cached.
	UpvoteFlagTTL time.Duration

	// RateLimitPerMinute bounds requests per client on public routes.
	RateLimitPerMinute int

	LogLevel  string
	LogFormat string

	CORSOrigins []string
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Port:               "8080",
		PublicBaseURL:      "http://localhost:8080",
		QStashURL:          "https://qstash.upstash.io",
		TriggerMode:        TriggerModeQStash,
		UpvoteBatchSize:    50,
		UpvoteFlagTTL:      7 * 24 * time.Hour,
		RateLimitPerMinute: 120,
		LogLevel:           "info",
		LogFormat:          "json",
		CORSOrigins:        []string{"*"},
	}
}

// Validate checks the configuration for missing or invalid values.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if c.RedisURL == "" {
		return ErrMissingRedisURL
	}
	if c.AuthSecret == "" {
		return ErrMissingAuthSecret
	}
	if c.PublicBaseURL == "" {
		return ErrMissingBaseURL
	}
	if c.QStashCurrentSigningKey == "" {
		return ErrMissingSigningKey
	}
	switch c.TriggerMode {
	case TriggerModeQStash:
		if c.QStashToken == "" {
			return ErrMissingQStashToken
		}
	case TriggerModeLocal:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidTriggerMode, c.TriggerMode)
	}
	return nil
}

// ConfigFromEnv creates a Config from environment variables.
// Uses defaults for any missing environment variables.
//
// Environment variables:
//   - DATABASE_URL, REDIS_URL: connection strings (required)
//   - APP_PORT: listen port (default: 8080)
//   - PUBLIC_BASE_URL: callback origin for batch triggers (default: http://localhost:8080)
//   - AUTH_SECRET: HS256 secret for user bearer tokens (required)
//   - QSTASH_URL, QSTASH_TOKEN: QStash publish API (token required in qstash mode)
//   - QSTASH_CURRENT_SIGNING_KEY, QSTASH_NEXT_SIGNING_KEY: callback signing keys
//   - TRIGGER_MODE: "qstash" or "local" (default: qstash)
//   - UPVOTE_BATCH_SIZE: operations per action per batch pass (default: 50)
//   - UPVOTE_FLAG_TTL_HOURS: vote flag lifetime in hours (default: 168)
//   - RATE_LIMIT_PER_MINUTE: per-client request budget (default: 120)
//   - LOG_LEVEL: debug|info|warn|error (default: info)
//   - LOG_FORMAT: json|text (default: json)
//   - CORS_ORIGINS: comma separated allowed origins (default: *)
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.AuthSecret = os.Getenv("AUTH_SECRET")
	cfg.QStashToken = os.Getenv("QSTASH_TOKEN")
	cfg.QStashCurrentSigningKey = os.Getenv("QSTASH_CURRENT_SIGNING_KEY")
	cfg.QStashNextSigningKey = os.Getenv("QSTASH_NEXT_SIGNING_KEY")

	if v := os.Getenv("APP_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("PUBLIC_BASE_URL"); v != "" {
		cfg.PublicBaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("QSTASH_URL"); v != "" {
		cfg.QStashURL = v
	}
	if v := os.Getenv("TRIGGER_MODE"); v != "" {
		cfg.TriggerMode = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}

	if v := os.Getenv("UPVOTE_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.UpvoteBatchSize = n
		} else {
			slog.Warn("invalid UPVOTE_BATCH_SIZE value, using default",
				"value", v,
				"default", cfg.UpvoteBatchSize,
				"error", err,
			)
		}
	}

	if v := os.Getenv("UPVOTE_FLAG_TTL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.UpvoteFlagTTL = time.Duration(n) * time.Hour
		} else {
			slog.Warn("invalid UPVOTE_FLAG_TTL_HOURS value, using default",
				"value", v,
				"default_hours", int(cfg.UpvoteFlagTTL.Hours()),
				"error", err,
			)
		}
	}

	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitPerMinute = n
		} else {
			slog.Warn("invalid RATE_LIMIT_PER_MINUTE value, using default",
				"value", v,
				"default", cfg.RateLimitPerMinute,
				"error", err,
			)
		}
	}

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) > 0 {
			cfg.CORSOrigins = origins
		}
	}

	return cfg
}

// Logger builds the process logger from LogLevel and LogFormat
func (c Config) Logger() *slog.Logger {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
