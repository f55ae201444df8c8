package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. Each
// Metrics carries its own registry so independently built services do
// not collide.
type Metrics struct {
	registry *prometheus.Registry

	ActiveSessions     prometheus.Gauge
	TurnEvents         *prometheus.CounterVec
	ExtractionRecords  *prometheus.CounterVec
	ScamProbability    prometheus.Histogram
	CallbackAttempts   *prometheus.CounterVec
	GenerationFailures prometheus.Counter
	StoreErrors        *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of sessions currently engaged.",
		}),
		TurnEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_events_total",
			Help:      "Turn pipeline events by type.",
		}, []string{"event"}),
		ExtractionRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_records_total",
			Help:      "Intelligence records extracted by type.",
		}, []string{"type"}),
		ScamProbability: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scam_probability",
			Help:      "Distribution of per-turn fraud probabilities.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),
		CallbackAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_attempts_total",
			Help:      "Completion callback attempts by outcome.",
		}, []string{"outcome"}),
		GenerationFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_failures_total",
			Help:      "Reply generation failures served a fallback line.",
		}),
		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Session store errors by operation.",
		}, []string{"op"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
