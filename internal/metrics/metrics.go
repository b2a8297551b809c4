// backend-go/internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

// Metrics tracks the planning engine.
//
//   - <ns>_engine_items_total: items processed by kind, method and outcome
//   - <ns>_engine_item_duration_seconds: per item pipeline duration
//   - <ns>_engine_fallbacks_total: strategy fallbacks by method and error kind
//   - <ns>_engine_failures_total: item failures by error kind
//   - <ns>_engine_batches_total / _engine_batch_duration_seconds: batch runs
type Metrics struct {
	registry *prometheus.Registry

	itemsTotal    *prometheus.CounterVec
	itemDuration  *prometheus.HistogramVec
	fallbacks     *prometheus.CounterVec
	failures      *prometheus.CounterVec
	batchesTotal  *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
}

// Item outcomes
const (
	OutcomeDecision = "decision"
	OutcomeSkipped  = "skipped"
	OutcomeFailure  = "failure"
)

// New creates and registers the engine collectors. A nil registry gets a private one.
func New(namespace string, registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = "autoplan"
	}

	m := &Metrics{
		registry: registry,
		itemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "items_total",
				Help:      "Items processed by the planning engine",
			},
			[]string{"kind", "method", "outcome"},
		),
		itemDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "item_duration_seconds",
				Help:      "Duration of one item pipeline",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 12), // 10µs to ~40s
			},
			[]string{"kind"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "fallbacks_total",
				Help:      "Strategy results replaced by the documented fallback",
			},
			[]string{"method", "error_kind"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "failures_total",
				Help:      "Items recorded as failures",
			},
			[]string{"kind", "error_kind"},
		),
		batchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "batches_total",
				Help:      "Batch runs by kind",
			},
			[]string{"kind"},
		),
		batchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "batch_duration_seconds",
				Help:      "Duration of one batch run",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.itemsTotal,
		m.itemDuration,
		m.fallbacks,
		m.failures,
		m.batchesTotal,
		m.batchDuration,
	)
	return m
}

// ObserveItem records one finished item.
func (m *Metrics) ObserveItem(kind domain.Kind, method, outcome string, d time.Duration) {
	m.itemsTotal.WithLabelValues(string(kind), method, outcome).Inc()
	m.itemDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

// ObserveFallback records a strategy fallback.
func (m *Metrics) ObserveFallback(method string, kind domain.ErrorKind) {
	m.fallbacks.WithLabelValues(method, string(kind)).Inc()
}

// ObserveFailure records an item failure.
func (m *Metrics) ObserveFailure(kind domain.Kind, errKind domain.ErrorKind) {
	m.failures.WithLabelValues(string(kind), string(errKind)).Inc()
}

// ObserveBatch records one finished batch.
func (m *Metrics) ObserveBatch(kind domain.Kind, d time.Duration) {
	m.batchesTotal.WithLabelValues(string(kind)).Inc()
	m.batchDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
