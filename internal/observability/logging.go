// Package observability provides logging and tracing for the client SDK
// and the dev server.
package observability

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

func init() {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	GlobalLogger = &Logger{Logger: slog.New(handler)}
}

// SetOutput replaces the global logger's handler. Used by tests and by the
// CLI to keep diagnostics off stdout.
func SetOutput(h slog.Handler) {
	GlobalLogger = &Logger{Logger: slog.New(h)}
}

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// CorrelationID is the context key carrying the per-request correlation ID.
const CorrelationID LogContextKey = "correlation_id"

// WithCorrelationID returns a new context with the given correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationID, id)
}

// ExtractCorrelationID retrieves the correlation ID from the context.
func ExtractCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationID).(string); ok {
		return id
	}
	return ""
}

// HTTPLogger is the pluggable diagnostic hook for outgoing HTTP traffic.
// The gateway calls it once per request and once per response; implementations
// must not retain the body slices they are handed.
type HTTPLogger interface {
	LogRequest(ctx context.Context, method, url string, contentType string)
	LogResponse(ctx context.Context, method, url string, status int, err error)
}

// SlogHTTPLogger logs HTTP traffic through the structured logger.
type SlogHTTPLogger struct {
	logger *Logger
}

// NewSlogHTTPLogger returns an HTTPLogger backed by the given logger,
// or the global logger when nil.
func NewSlogHTTPLogger(logger *Logger) *SlogHTTPLogger {
	if logger == nil {
		logger = GlobalLogger
	}
	return &SlogHTTPLogger{logger: logger}
}

// LogRequest logs an outgoing request.
func (l *SlogHTTPLogger) LogRequest(ctx context.Context, method, url string, contentType string) {
	l.logger.InfoContext(ctx, "http request",
		slog.String("method", method),
		slog.String("url", url),
		slog.String("content_type", contentType),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	)
}

// LogResponse logs the outcome of a request.
func (l *SlogHTTPLogger) LogResponse(ctx context.Context, method, url string, status int, err error) {
	attrs := []any{
		slog.String("method", method),
		slog.String("url", url),
		slog.Int("status", status),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		l.logger.ErrorContext(ctx, "http response", attrs...)
		return
	}
	l.logger.InfoContext(ctx, "http response", attrs...)
}

// NopHTTPLogger discards all HTTP diagnostics.
type NopHTTPLogger struct{}

// LogRequest implements HTTPLogger.
func (NopHTTPLogger) LogRequest(context.Context, string, string, string) {}

// LogResponse implements HTTPLogger.
func (NopHTTPLogger) LogResponse(context.Context, string, string, int, error) {}

// LogActionError logs an action failure with its raw diagnostic detail.
// Used for failures whose detail must be logged but never shown to the user
// (e.g. unsupported-media-type responses).
func LogActionError(ctx context.Context, action string, err error, fields map[string]interface{}) {
	attrs := []any{
		slog.String("action", action),
		slog.String("error", err.Error()),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	GlobalLogger.ErrorContext(ctx, "action failed", attrs...)
}
