// Package observability provides structured logging helpers for Hikari.
//
// It wraps log/slog with trace ID propagation and secret redaction so that
// every log line emitted while handling an update carries the trace context.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bdobrica/Hikari/common/redact"
	"github.com/bdobrica/Hikari/common/trace"
)

// ParseLevel maps "debug", "warn", "error" to slog levels; anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// NewLogger builds a logger writing to w in "json" or text format.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Setup configures the global slog logger according to the provided level and
// format strings (e.g. level="info", format="json").
func Setup(level, format string) {
	slog.SetDefault(NewLogger(os.Stdout, level, format))
}

// WithTrace returns a child logger that always includes the trace_id from ctx.
func WithTrace(ctx context.Context) *slog.Logger {
	return LoggerWithTrace(ctx, slog.Default())
}

// LoggerWithTrace is WithTrace for an explicitly injected logger.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	traceID := trace.FromContext(ctx)
	if traceID == "" {
		return logger
	}
	return logger.With("trace_id", traceID)
}

// RedactSecrets strips known-sensitive values and bot tokens in URLs from msg.
func RedactSecrets(msg string, sensitiveValues ...string) string {
	return redact.BotURL(redact.String(msg, sensitiveValues...))
}
