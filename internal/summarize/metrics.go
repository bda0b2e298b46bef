package summarize

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/treedoc/internal/logging"
)

const instrumentationName = "github.com/fyrsmithlabs/treedoc/internal/summarize"

// unitMetrics counts settled units by kind and status.
type unitMetrics struct {
	units    metric.Int64Counter
	duration metric.Float64Histogram
}

func newUnitMetrics(meter metric.Meter, logger *logging.Logger) *unitMetrics {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(instrumentationName)
	}
	m := &unitMetrics{}

	var err error
	m.units, err = meter.Int64Counter(
		"treedoc.units",
		metric.WithDescription("Files and folders settled, labeled by kind (file, folder) and status (produced, skipped, failed, reused)."),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		logger.Warn(context.Background(), "failed to create units counter", zap.Error(err))
	}

	m.duration, err = meter.Float64Histogram(
		"treedoc.unit.duration",
		metric.WithDescription("Wall time to settle one file or folder, including queueing for call permits."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		logger.Warn(context.Background(), "failed to create unit duration histogram", zap.Error(err))
	}
	return m
}

func (m *unitMetrics) record(ctx context.Context, kind string, o Outcome, start time.Time) {
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", o.Status.String()),
	)
	if m.units != nil {
		m.units.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}
