// Package monitoring exposes Prometheus metrics for the hashing engines.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics collects engine activity. All record methods are nil-safe so the
// engines can run without a metrics sink wired in.
type Metrics struct {
	registry *prometheus.Registry

	poolSize     prometheus.Gauge
	hashesTotal  prometheus.Counter
	initDuration prometheus.Histogram
	initFailures prometheus.Counter
	degradations prometheus.Counter
}

// New creates the metrics set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		poolSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "kodama",
			Subsystem: "randomx",
			Name:      "vm_pool_size",
			Help:      "Number of live hashing VMs in the current context",
		}),
		hashesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kodama",
			Subsystem: "randomx",
			Name:      "hashes_total",
			Help:      "Total hash invocations dispatched",
		}),
		initDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kodama",
			Subsystem: "randomx",
			Name:      "init_duration_seconds",
			Help:      "Wall time of successful context initializations",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		initFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kodama",
			Subsystem: "randomx",
			Name:      "init_failures_total",
			Help:      "Context initializations that failed outright",
		}),
		degradations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kodama",
			Subsystem: "randomx",
			Name:      "degradations_total",
			Help:      "Initializations that fell back to cache-only mode",
		}),
	}
}

// SetPoolSize records the live VM pool size.
func (m *Metrics) SetPoolSize(n int) {
	if m != nil {
		m.poolSize.Set(float64(n))
	}
}

// IncHashes counts one dispatched hash invocation.
func (m *Metrics) IncHashes() {
	if m != nil {
		m.hashesTotal.Inc()
	}
}

// ObserveInit records the wall time of a successful initialization.
func (m *Metrics) ObserveInit(d time.Duration) {
	if m != nil {
		m.initDuration.Observe(d.Seconds())
	}
}

// IncInitFailures counts one failed initialization.
func (m *Metrics) IncInitFailures() {
	if m != nil {
		m.initFailures.Inc()
	}
}

// IncDegradations counts one fallback to cache-only mode.
func (m *Metrics) IncDegradations() {
	if m != nil {
		m.degradations.Inc()
	}
}

// Handler returns the scrape handler for the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr. Blocks until the server fails.
func (m *Metrics) Serve(addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	logger.Info("Serving metrics", zap.String("addr", addr))
	return http.ListenAndServe(addr, mux)
}
