// Package logging configures the process-wide slog logger. Both binaries call
// Setup once at startup, before anything else logs.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/keyxmakerx/catalog/internal/config"
)

// Setup configures the global slog logger based on the environment.
// Development uses text format for readability. Production uses JSON for
// structured log aggregation. LOG_LEVEL overrides the default level.
func Setup(cfg *config.Config) *slog.Logger {
	return setup(os.Stdout, cfg)
}

func setup(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.LogLevel)}

	var handler slog.Handler
	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a LOG_LEVEL string to a slog level. Unknown values fall
// back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// QueueLogger adapts a slog.Logger to the asynq.Logger interface so queue
// internals write to the same sink as the rest of the process.
type QueueLogger struct {
	l *slog.Logger
}

// NewQueueLogger wraps the given logger, tagging every line with
// component=queue.
func NewQueueLogger(l *slog.Logger) *QueueLogger {
	return &QueueLogger{l: l.With(slog.String("component", "queue"))}
}

func (q *QueueLogger) Debug(args ...any) { q.l.Debug(fmt.Sprint(args...)) }
func (q *QueueLogger) Info(args ...any)  { q.l.Info(fmt.Sprint(args...)) }
func (q *QueueLogger) Warn(args ...any)  { q.l.Warn(fmt.Sprint(args...)) }
func (q *QueueLogger) Error(args ...any) { q.l.Error(fmt.Sprint(args...)) }

// Fatal logs at error level and exits. asynq only calls it on unrecoverable
// broker setup failures.
func (q *QueueLogger) Fatal(args ...any) {
	q.l.Error(fmt.Sprint(args...))
	os.Exit(1)
}
