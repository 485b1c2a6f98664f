// Package logging provides structured logging utilities for scoutmcp.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// globalLogger is the default logger used when no logger is in context.
var globalLogger zerolog.Logger

func init() {
	// Initialize global logger with default configuration
	globalLogger = NewLogger()
}

// NewLogger creates a new zerolog logger configured based on environment variables.
// It reads SCOUT_LOG for log level (trace, debug, info, warn, error) and
// SCOUT_LOG_JSON for output format. Every event passes through SanitizingHook,
// which marks events with a credential-shaped message but does not remove or
// rewrite anything; use SanitizeString/SanitizeMap on values before logging.
func NewLogger() zerolog.Logger {
	level := parseLogLevel(os.Getenv("SCOUT_LOG"))

	var output io.Writer
	if shouldUseJSON() {
		output = os.Stderr
	} else {
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(output).
		Level(level).
		Hook(SanitizingHook{}).
		With().
		Timestamp().
		Logger()
}

// parseLogLevel parses the SCOUT_LOG environment variable into a zerolog.Level.
// Supports: trace, debug, info, warn, error. Defaults to info if unset or invalid.
func parseLogLevel(scoutLog string) zerolog.Level {
	switch strings.ToLower(scoutLog) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "info", "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}

// shouldUseJSON returns true if JSON output format should be used.
// JSON is used when SCOUT_LOG_JSON=1 or when running in a common CI environment.
func shouldUseJSON() bool {
	if os.Getenv("SCOUT_LOG_JSON") == "1" {
		return true
	}
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return true
	}
	return false
}

// Global returns a pointer to the global logger.
func Global() *zerolog.Logger {
	return &globalLogger
}

// SetGlobal sets the global logger.
func SetGlobal(logger zerolog.Logger) {
	globalLogger = logger
}

// WithFields returns a logger with the specified fields attached.
func WithFields(logger zerolog.Logger, fields map[string]interface{}) zerolog.Logger {
	ctx := logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return ctx.Logger()
}
