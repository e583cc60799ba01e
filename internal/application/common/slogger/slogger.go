// Package slogger provides the context-aware structured logging facade used
// across the application. All packages log through it so output format and
// level are controlled in one place.
package slogger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Fields carries structured key/value pairs attached to a log record.
type Fields map[string]interface{}

// Config controls the global logger.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

var (
	globalLogger *slog.Logger //nolint:gochecknoglobals // singleton logging infrastructure
	loggerMu     sync.RWMutex //nolint:gochecknoglobals // guards globalLogger
)

// Init configures the global logger. Safe to call more than once; the last
// call wins.
func Init(cfg Config) {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	loggerMu.Lock()
	globalLogger = slog.New(handler)
	loggerMu.Unlock()
}

// SetGlobalLogger replaces the global logger (useful for testing).
func SetGlobalLogger(logger *slog.Logger) {
	loggerMu.Lock()
	globalLogger = logger
	loggerMu.Unlock()
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getLogger() *slog.Logger {
	loggerMu.RLock()
	logger := globalLogger
	loggerMu.RUnlock()
	if logger == nil {
		Init(Config{Level: "info", Format: "json"})
		loggerMu.RLock()
		logger = globalLogger
		loggerMu.RUnlock()
	}
	return logger
}

func attrs(fields Fields) []any {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

// Debug logs a debug message with context.
func Debug(ctx context.Context, msg string, fields Fields) {
	getLogger().DebugContext(ctx, msg, attrs(fields)...)
}

// Info logs an info message with context.
func Info(ctx context.Context, msg string, fields Fields) {
	getLogger().InfoContext(ctx, msg, attrs(fields)...)
}

// Warn logs a warning message with context.
func Warn(ctx context.Context, msg string, fields Fields) {
	getLogger().WarnContext(ctx, msg, attrs(fields)...)
}

// Error logs an error message with context.
func Error(ctx context.Context, msg string, fields Fields) {
	getLogger().ErrorContext(ctx, msg, attrs(fields)...)
}

// ErrorWithError logs an error message with an error object and context.
func ErrorWithError(ctx context.Context, err error, msg string, fields Fields) {
	merged := make(Fields, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged["error"] = err.Error()
	Error(ctx, msg, merged)
}

// InfoNoCtx logs an info message without context (uses background context).
func InfoNoCtx(msg string, fields Fields) {
	Info(context.Background(), msg, fields)
}

// WarnNoCtx logs a warning message without context (uses background context).
func WarnNoCtx(msg string, fields Fields) {
	Warn(context.Background(), msg, fields)
}

// ErrorNoCtx logs an error message without context (uses background context).
func ErrorNoCtx(msg string, fields Fields) {
	Error(context.Background(), msg, fields)
}
