// Package logging provides the dispatcher's operational logger. It is a
// trimmed port of oriys/nova's internal/logging "Op" pattern: a
// package-level *slog.Logger behind an atomic pointer, with a LevelVar so
// callers can change verbosity at runtime without re-creating the logger.
package logging

import (
	"log/slog"
	"os"
	"sync/atomic"
)

var (
	opLogger atomic.Pointer[slog.Logger]
	logLevel = new(slog.LevelVar)
)

func init() {
	logLevel.Set(slog.LevelInfo)
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	opLogger.Store(slog.New(handler))
}

// Op returns the dispatcher's operational logger.
func Op() *slog.Logger {
	return opLogger.Load()
}

// SetLevel changes the log level for the operational logger.
func SetLevel(level slog.Level) {
	logLevel.Set(level)
}

// SetLevelFromString sets the log level from a config string. Unknown
// values are ignored, leaving the current level in place.
func SetLevelFromString(level string) {
	switch level {
	case "debug", "DEBUG":
		logLevel.Set(slog.LevelDebug)
	case "info", "INFO":
		logLevel.Set(slog.LevelInfo)
	case "warn", "WARN", "warning", "WARNING":
		logLevel.Set(slog.LevelWarn)
	case "error", "ERROR":
		logLevel.Set(slog.LevelError)
	}
}

// WithRun returns a logger that tags every record with the dispatch run
// that produced it, the way nova's OpWithTrace tags records with a
// request's trace/span IDs.
func WithRun(runID string) *slog.Logger {
	return Op().With("run_id", runID)
}
