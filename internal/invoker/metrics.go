package invoker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the invocation gate.
//
//   - treedoc_invoker_in_flight - calls currently holding a permit
//   - treedoc_invoker_queued - calls waiting for a permit
//   - treedoc_invoker_calls_total{outcome} - settled calls (success, error, canceled)
//   - treedoc_invoker_queue_wait_seconds - time from Schedule to permit
//   - treedoc_invoker_call_duration_seconds - time spent inside the call
type Metrics struct {
	InFlight     prometheus.Gauge
	Queued       prometheus.Gauge
	CallsTotal   *prometheus.CounterVec
	QueueWait    prometheus.Histogram
	CallDuration prometheus.Histogram
}

// NewMetrics registers the collectors on reg. A nil reg yields unregistered
// collectors, which is what most tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "treedoc",
			Subsystem: "invoker",
			Name:      "in_flight",
			Help:      "LLM calls currently holding a concurrency permit",
		}),
		Queued: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "treedoc",
			Subsystem: "invoker",
			Name:      "queued",
			Help:      "LLM calls waiting for a concurrency permit",
		}),
		CallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "treedoc",
			Subsystem: "invoker",
			Name:      "calls_total",
			Help:      "Settled LLM calls by outcome",
		}, []string{"outcome"}),
		QueueWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "treedoc",
			Subsystem: "invoker",
			Name:      "queue_wait_seconds",
			Help:      "Time a call waited for a permit",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		CallDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "treedoc",
			Subsystem: "invoker",
			Name:      "call_duration_seconds",
			Help:      "Time spent inside an LLM call",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
}
