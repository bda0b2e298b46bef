package llm

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/treedoc/internal/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const previewChars = 512

// Instrumented wraps a Client with a span per call and trace-level logging
// of prompt and response previews.
type Instrumented struct {
	Inner  Client
	Tracer trace.Tracer
	Logger *logging.Logger
}

// Complete implements Client.
func (m *Instrumented) Complete(ctx context.Context, model, prompt string) (string, error) {
	ctx, span := m.Tracer.Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("llm.model", model),
		attribute.Int("llm.prompt_chars", len(prompt)),
	))
	defer span.End()

	m.Logger.Trace(ctx, "llm prompt", zap.String("model", model), zap.String("prompt", clip(prompt)))

	start := time.Now()
	out, err := m.Inner.Complete(ctx, model, prompt)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.Logger.Debug(ctx, "llm call failed", zap.String("model", model), zap.Duration("elapsed", elapsed), zap.Error(err))
		return "", err
	}

	span.SetAttributes(attribute.Int("llm.response_chars", len(out)))
	m.Logger.Trace(ctx, "llm response", zap.String("model", model), zap.Duration("elapsed", elapsed), zap.String("response", clip(out)))
	return out, nil
}

func clip(s string) string {
	if len(s) <= previewChars {
		return s
	}
	return s[:previewChars] + "..."
}
