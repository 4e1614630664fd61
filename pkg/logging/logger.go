// Package logging configures the global zerolog logger used by every
// component of the seeder.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

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

// FromSettings builds a Config writing to os.Stderr from plain settings as
// they appear in the seeder configuration.
func FromSettings(level string, pretty bool) Config {
	return Config{
		Level:  LogLevel(level),
		Pretty: pretty,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.DurationFieldUnit = time.Millisecond

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.TimeOnly}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
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
//   - Nested reference fetches and their labels
//   - Label cache hits (memory, redis)
//   - Individual row inserts
//
// Info: Normal operation events
//   - Entity count received
//   - Fetch entity START / FINISH per index
//   - Entity added, entity absent
//   - Window START / FINISH
//   - Run summary with elapsed time
//
// Warn: Warning conditions that don't prevent operation
//   - Retry attempts
//   - Cooldowns opened by 429/503 responses
//   - Payloads without an identifying field (treated as absent)
//   - Skipped windows (SkipFailedWindows)
//   - Label cache errors (fallback to the remote source)
//
// Error: Error conditions requiring attention
//   - Failed window that aborts the run
//   - Fatal startup errors (config, database, redis)
//
// Context Fields:
//   - component: remote-client, resolver, label-cache, pipeline, store, main
//   - index: entity index
//   - window: 1-based window number
//   - indices: entity indices of the window
//   - url: reference or entity URL
//   - status_code: HTTP status code
//   - error_class: Error classification (client, server, rate_limit, network, payload)
//   - duration / elapsed: milliseconds
