// Package logging builds the process-wide structured logger: a tint
// handler writing colorized, human-readable lines to stdout, with the
// level controlled by an environment variable.
package logging

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// EnvLogLevel is the environment variable read by New; unset or
// unrecognized values fall back to info.
const EnvLogLevel = "LOG_LEVEL"

// New builds a logger at the level named by the LOG_LEVEL environment
// variable ("debug", "info", "warn", "error"; default "info").
func New() *slog.Logger {
	return NewAtLevel(os.Getenv(EnvLogLevel))
}

// NewAtLevel builds a logger at the named level, bypassing the environment.
func NewAtLevel(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := tint.NewHandler(os.Stdout, &tint.Options{Level: logLevel})
	return slog.New(handler)
}
