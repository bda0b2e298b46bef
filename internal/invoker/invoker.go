// Package invoker is the single gate every LLM call passes through.
//
// It bounds in-flight calls to a fixed ceiling and releases queued calls in
// submission order. It never retries; a failed call frees its permit like
// any other.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultMaxConcurrent is the ceiling used when none is configured.
const DefaultMaxConcurrent = 25

// Invoker bounds concurrent calls. The zero value is not usable; use New.
type Invoker struct {
	limit   int64
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	metrics *Metrics

	inFlight atomic.Int64
	queued   atomic.Int64
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithRate paces permit holders to rps calls per second with the given
// burst. rps <= 0 disables pacing.
func WithRate(rps float64, burst int) Option {
	return func(i *Invoker) {
		if rps <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		i.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMetrics records gate activity on m.
func WithMetrics(m *Metrics) Option {
	return func(i *Invoker) {
		i.metrics = m
	}
}

// New creates an invoker allowing at most limit calls in flight.
// limit < 1 falls back to DefaultMaxConcurrent.
func New(limit int, opts ...Option) *Invoker {
	if limit < 1 {
		limit = DefaultMaxConcurrent
	}
	inv := &Invoker{
		limit: int64(limit),
		sem:   semaphore.NewWeighted(int64(limit)),
	}
	for _, opt := range opts {
		opt(inv)
	}
	if inv.metrics == nil {
		inv.metrics = NewMetrics(nil)
	}
	return inv
}

// Schedule runs call once a permit is free. Waiters are served first in,
// first out. The permit is released when call returns, whatever it returns.
//
// If ctx ends while waiting, Schedule returns ctx.Err() without running call.
func (i *Invoker) Schedule(ctx context.Context, call func(ctx context.Context) error) error {
	queuedAt := time.Now()
	i.queued.Add(1)
	i.metrics.Queued.Inc()

	err := i.sem.Acquire(ctx, 1)

	i.queued.Add(-1)
	i.metrics.Queued.Dec()
	if err != nil {
		i.metrics.CallsTotal.WithLabelValues("canceled").Inc()
		return fmt.Errorf("waiting for call permit: %w", err)
	}
	defer i.sem.Release(1)

	i.metrics.QueueWait.Observe(time.Since(queuedAt).Seconds())

	if i.limiter != nil {
		if err := i.limiter.Wait(ctx); err != nil {
			i.metrics.CallsTotal.WithLabelValues("canceled").Inc()
			return fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	i.inFlight.Add(1)
	i.metrics.InFlight.Inc()
	start := time.Now()
	defer func() {
		i.inFlight.Add(-1)
		i.metrics.InFlight.Dec()
		i.metrics.CallDuration.Observe(time.Since(start).Seconds())
	}()

	err = call(ctx)
	switch {
	case err == nil:
		i.metrics.CallsTotal.WithLabelValues("success").Inc()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		i.metrics.CallsTotal.WithLabelValues("canceled").Inc()
	default:
		i.metrics.CallsTotal.WithLabelValues("error").Inc()
	}
	return err
}

// Run is Schedule for calls that produce a value.
func Run[T any](ctx context.Context, i *Invoker, call func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := i.Schedule(ctx, func(ctx context.Context) error {
		v, err := call(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Limit returns the concurrency ceiling.
func (i *Invoker) Limit() int { return int(i.limit) }

// InFlight returns the number of calls currently running.
func (i *Invoker) InFlight() int { return int(i.inFlight.Load()) }

// Queued returns the number of calls waiting for a permit.
func (i *Invoker) Queued() int { return int(i.queued.Load()) }
