// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvLevel  = "LOG_LEVEL"
	EnvPretty = "LOG_PRETTY"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// ConfigFromEnv starts from DefaultConfig and applies LOG_LEVEL and
// LOG_PRETTY. Unparsable values keep the default.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv(EnvLevel); v != "" {
		cfg.Level = LogLevel(strings.ToLower(v))
	}
	if v := os.Getenv(EnvPretty); v != "" {
		if pretty, err := strconv.ParseBool(v); err == nil {
			cfg.Pretty = pretty
		}
	}
	return cfg
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Loader state transitions (fetching, idle, exhausted)
//   - Page fetches (query fingerprint, item count, has_next)
//   - Cache hits and invalidations
//   - Resolutions discarded after teardown
//
// Info: Normal operation events
//   - Requests that succeeded after a retry
//   - CLI startup and shutdown, metrics server address
//
// Warn: Warning conditions that don't prevent operation
//   - Failed page fetches (loader stays usable, next trigger retries)
//   - Full pages without a continuation cursor
//   - Quota throttling and retry exhaustion
//   - Cache errors (fallback to the wrapped source)
//
// Error: Error conditions requiring attention
//   - Critical quota blocks
//   - Configuration errors in the CLI
//
// Context Fields:
//   - component: loader, cache, httpapi, redisstore, ratelimit, cli
//   - scope: loader name (category, offers, owner)
//   - query: pagination query fingerprint
//   - operation: API operation (list, delete)
//   - status: HTTP status code
//   - error_class: client, server, rate_limit, network
//   - remaining: API quota remaining
