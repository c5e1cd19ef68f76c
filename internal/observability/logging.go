// Package observability carries structured logging context (job id, agent
// id, step, request id) through context.Context so that every log line in
// the compile flow is correlatable without threading fields by hand.
package observability

import (
	"context"
	"log/slog"
)

// LogContext holds structured logging context information.
type LogContext struct {
	JobID     string
	AgentID   string
	Step      string
	RequestID string
}

type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

// WithJobID adds a compilation job ID to the context.
func WithJobID(ctx context.Context, jobID string) context.Context {
	lc := extractLogContext(ctx)
	lc.JobID = jobID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithAgentID adds an agent ID to the context.
func WithAgentID(ctx context.Context, agentID string) context.Context {
	lc := extractLogContext(ctx)
	lc.AgentID = agentID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithStep adds a pipeline step name to the context.
func WithStep(ctx context.Context, step string) context.Context {
	lc := extractLogContext(ctx)
	lc.Step = step
	return context.WithValue(ctx, logContextKey, lc)
}

// WithRequestID adds an HTTP request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	lc := extractLogContext(ctx)
	lc.RequestID = requestID
	return context.WithValue(ctx, logContextKey, lc)
}

// GetContext returns the structured log context from the provided context.
func GetContext(ctx context.Context) LogContext {
	return extractLogContext(ctx)
}

func extractLogContext(ctx context.Context) LogContext {
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

func getLogAttrs(ctx context.Context) []slog.Attr {
	lc := extractLogContext(ctx)
	attrs := []slog.Attr{}

	if lc.JobID != "" {
		attrs = append(attrs, slog.String("job.id", lc.JobID))
	}
	if lc.AgentID != "" {
		attrs = append(attrs, slog.String("agent.id", lc.AgentID))
	}
	if lc.Step != "" {
		attrs = append(attrs, slog.String("step", lc.Step))
	}
	if lc.RequestID != "" {
		attrs = append(attrs, slog.String("request.id", lc.RequestID))
	}

	return attrs
}

// InfoContext logs an info message with context information.
func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	allAttrs := append(getLogAttrs(ctx), attrs...)
	slog.LogAttrs(ctx, slog.LevelInfo, msg, allAttrs...)
}

// WarnContext logs a warning message with context information.
func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	allAttrs := append(getLogAttrs(ctx), attrs...)
	slog.LogAttrs(ctx, slog.LevelWarn, msg, allAttrs...)
}

// ErrorContext logs an error message with context information.
func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	allAttrs := append(getLogAttrs(ctx), attrs...)
	slog.LogAttrs(ctx, slog.LevelError, msg, allAttrs...)
}

// DebugContext logs a debug message with context information.
func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	allAttrs := append(getLogAttrs(ctx), attrs...)
	slog.LogAttrs(ctx, slog.LevelDebug, msg, allAttrs...)
}
