package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Trace ingestion metrics
	TracesCollected  prometheus.Counter
	SpansPerTrace    prometheus.Histogram
	TraceDuration    prometheus.Histogram
	AnalysisFailures prometheus.Counter

	// Store metrics
	StoreTraces prometheus.Gauge
	StoreBytes  prometheus.Gauge
	Evictions   *prometheus.CounterVec

	// HTTP metrics for the query surface
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a metrics collector registered against reg. Passing a
// fresh registry keeps tests independent of global state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		startTime: time.Now(),

		TracesCollected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "spanlight_traces_collected_total",
				Help: "Total number of traces collected",
			},
		),
		SpansPerTrace: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "spanlight_spans_per_trace",
				Help:    "Span count distribution per collected trace",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
			},
		),
		TraceDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "spanlight_trace_duration_seconds",
				Help:    "Wall-clock duration of collected traces",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		AnalysisFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "spanlight_analysis_failures_total",
				Help: "Analyses that failed and were isolated to their trace",
			},
		),

		StoreTraces: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "spanlight_store_traces",
				Help: "Traces currently resident in the store",
			},
		),
		StoreBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "spanlight_store_bytes_estimate",
				Help: "Estimated serialized size of resident traces",
			},
		),
		Evictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spanlight_store_evictions_total",
				Help: "Traces evicted from the store",
			},
			[]string{"reason"},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spanlight_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spanlight_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "spanlight_ws_connections",
				Help: "Active websocket dashboard connections",
			},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "spanlight_uptime_seconds",
				Help: "Engine uptime in seconds",
			},
		),
	}
}

// RecordTrace records ingestion of one finalized trace.
func (m *Metrics) RecordTrace(spanCount int, duration time.Duration) {
	m.TracesCollected.Inc()
	m.SpansPerTrace.Observe(float64(spanCount))
	m.TraceDuration.Observe(duration.Seconds())
}

// RecordEviction records a store eviction with its reason (ttl, capacity).
func (m *Metrics) RecordEviction(reason string, count int) {
	m.Evictions.WithLabelValues(reason).Add(float64(count))
}

// RecordStoreSize updates store residency gauges.
func (m *Metrics) RecordStoreSize(traces int, bytes int) {
	m.StoreTraces.Set(float64(traces))
	m.StoreBytes.Set(float64(bytes))
}

// RecordHTTPRequest records one query-surface request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
