// Package logging configures the process-wide slog logger.  Development
// runs get colored tint output on stderr; production runs emit JSON on
// stdout so the lines can be shipped as-is.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup installs the default logger for the given environment and level
// name (debug, info, warn, error).
func Setup(env, level string) *slog.Logger {
	logger := New(os.Stderr, env, ParseLevel(level))
	slog.SetDefault(logger)
	return logger
}

// New builds a logger without installing it.
func New(w io.Writer, env string, level slog.Level) *slog.Logger {
	if strings.EqualFold(env, "prod") || strings.EqualFold(env, "production") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  level == slog.LevelDebug,
	}))
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
