package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

const (
	defaultListenAddr = ":3001"
	defaultJWTSecret  = "test-secret-key-for-assignment"
	defaultTokenTTL   = time.Hour
	defaultSQLiteDSN  = ":memory:"

	envListenAddr = "ESGQA_LISTEN_ADDR"
	envLogLevel   = "ESGQA_LOG_LEVEL"
	envLogFormat  = "ESGQA_LOG_FORMAT"
	envJWTSecret  = "ESGQA_JWT_SECRET"
	envTokenTTL   = "ESGQA_TOKEN_TTL"
	envStore      = "ESGQA_STORE"
	envSQLiteDSN  = "ESGQA_SQLITE_DSN"
	envRedisAddr  = "ESGQA_REDIS_ADDR"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Log formats.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	LogLevel   slog.Level
	LogFormat  string
	JWTSecret  string
	TokenTTL   time.Duration
	Store      string
	SQLiteDSN  string
	// RedisAddr selects the Redis-backed rate limiter when non-empty.
	RedisAddr string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr: defaultListenAddr,
		LogLevel:   slog.LevelInfo,
		LogFormat:  LogFormatJSON,
		JWTSecret:  defaultJWTSecret,
		TokenTTL:   defaultTokenTTL,
		Store:      StoreMemory,
		SQLiteDSN:  defaultSQLiteDSN,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := strings.ToLower(os.Getenv(envLogFormat)); v == LogFormatConsole {
		cfg.LogFormat = LogFormatConsole
	}
	if v := os.Getenv(envJWTSecret); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv(envTokenTTL); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.TokenTTL = d
		}
	}
	if v := strings.ToLower(os.Getenv(envStore)); v == StoreSQLite {
		cfg.Store = StoreSQLite
	}
	if v := os.Getenv(envSQLiteDSN); v != "" {
		cfg.SQLiteDSN = v
	}
	cfg.RedisAddr = os.Getenv(envRedisAddr)

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured logger writing to w at the configured
// level: JSON by default, colourised text for the console format.
func NewLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	if format == LogFormatConsole {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
