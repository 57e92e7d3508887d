// Package observability carries request-scoped logging state through contexts.
package observability

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

type requestIDKey struct{}

// ContextWithLogger attaches lg to ctx. A nil logger leaves ctx unchanged.
func ContextWithLogger(ctx context.Context, lg *slog.Logger) context.Context {
	if ctx == nil || lg == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, lg)
}

// LoggerFromContext returns the logger stored in ctx, or slog.Default().
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	if lg, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && lg != nil {
		return lg
	}
	return slog.Default()
}

// ContextWithRequestID stores the originating request id so queue workers
// can correlate their logs with the HTTP call that enqueued the work.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the stored request id or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	rid, _ := ctx.Value(requestIDKey{}).(string)
	return rid
}

// WithAttrs derives a logger from the one in ctx with extra attributes and
// stores it back, so every later log line for the assessment carries them.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return ContextWithLogger(ctx, LoggerFromContext(ctx).With(args...))
}
