// internal/logging/context.go
package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 5)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if runID := RunIDFromContext(ctx); runID != "" {
		fields = append(fields, zap.String("run.id", runID))
	}

	if u, ok := UnitFromContext(ctx); ok {
		fields = append(fields,
			zap.String("unit.kind", u.Kind),
			zap.String("unit.path", u.Path),
		)
	}

	return fields
}

type runCtxKey struct{}
type unitCtxKey struct{}
type loggerCtxKey struct{}

// Unit identifies the file or folder a piece of work belongs to.
type Unit struct {
	Kind string // "file" or "folder"
	Path string
}

// WithRunID tags the context with the identifier of one pipeline run.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runCtxKey{}, runID)
}

// RunIDFromContext extracts the run identifier from context.
func RunIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(runCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithUnit tags the context with the unit being processed.
func WithUnit(ctx context.Context, kind, path string) context.Context {
	return context.WithValue(ctx, unitCtxKey{}, Unit{Kind: kind, Path: path})
}

// UnitFromContext extracts the unit from context.
func UnitFromContext(ctx context.Context) (Unit, bool) {
	u, ok := ctx.Value(unitCtxKey{}).(Unit)
	return u, ok
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
