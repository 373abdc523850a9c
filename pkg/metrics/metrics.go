// Package metrics exposes Prometheus collectors for the collector pipeline
// and the development ingestion server.
//
// Every recording method is safe to call on a nil *Metrics so components can
// run without instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons reported by RecordDropped.
const (
	DropReasonPolicy = "policy"
)

// Batch outcomes reported by RecordBatch.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds all Prometheus metrics for a HawkEye process.
type Metrics struct {
	// Queue metrics
	signalsEnqueued  prometheus.Counter
	signalsDropped   *prometheus.CounterVec
	signalsDelivered prometheus.Counter
	signalsRequeued  prometheus.Counter
	queueDepth       prometheus.Gauge

	// Delivery metrics
	batchesSent   *prometheus.CounterVec
	flushDuration *prometheus.HistogramVec

	// Lifecycle metrics
	lifecycleTransitions *prometheus.CounterVec
	adapterStopErrors    *prometheus.CounterVec

	// Ingestion server metrics
	ingestedSignals     *prometheus.CounterVec
	throttledRequests   prometheus.Counter
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a metrics instance registered on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		signalsEnqueued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hawkeye_signals_enqueued_total",
				Help: "Total number of signals accepted into the queue",
			},
		),

		signalsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hawkeye_signals_dropped_total",
				Help: "Total number of signals rejected before enqueue",
			},
			[]string{"reason"},
		),

		signalsDelivered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hawkeye_signals_delivered_total",
				Help: "Total number of signals acknowledged by the ingestion endpoint",
			},
		),

		signalsRequeued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hawkeye_signals_requeued_total",
				Help: "Total number of signals put back in the buffer after a failed delivery",
			},
		),

		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hawkeye_queue_depth",
				Help: "Number of signals currently buffered",
			},
		),

		batchesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hawkeye_batches_sent_total",
				Help: "Total number of delivery attempts by outcome",
			},
			[]string{"outcome"},
		),

		flushDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hawkeye_flush_duration_seconds",
				Help:    "Delivery call latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),

		lifecycleTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hawkeye_lifecycle_transitions_total",
				Help: "Total number of observer state transitions by target state",
			},
			[]string{"state"},
		),

		adapterStopErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hawkeye_adapter_stop_errors_total",
				Help: "Total number of adapters that failed to stop cleanly",
			},
			[]string{"adapter"},
		),

		ingestedSignals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hawkeye_ingest_signals_total",
				Help: "Signals received by the ingestion server by result",
			},
			[]string{"result"},
		),

		throttledRequests: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hawkeye_ingest_throttled_requests_total",
				Help: "Ingestion requests answered without processing because the key was rate limited",
			},
		),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hawkeye_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hawkeye_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.signalsEnqueued,
		m.signalsDropped,
		m.signalsDelivered,
		m.signalsRequeued,
		m.queueDepth,
		m.batchesSent,
		m.flushDuration,
		m.lifecycleTransitions,
		m.adapterStopErrors,
		m.ingestedSignals,
		m.throttledRequests,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)

	return m
}

// RecordEnqueued records one accepted signal and the resulting queue depth.
func (m *Metrics) RecordEnqueued(depth int) {
	if m == nil {
		return
	}
	m.signalsEnqueued.Inc()
	m.queueDepth.Set(float64(depth))
}

// RecordDropped records a signal rejected before enqueue.
func (m *Metrics) RecordDropped(reason string) {
	if m == nil {
		return
	}
	m.signalsDropped.WithLabelValues(reason).Inc()
}

// RecordBatch records the outcome of one delivery attempt.
func (m *Metrics) RecordBatch(size int, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
		m.signalsRequeued.Add(float64(size))
	} else {
		m.signalsDelivered.Add(float64(size))
	}
	m.batchesSent.WithLabelValues(outcome).Inc()
	m.flushDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// SetQueueDepth updates the buffered signal gauge.
func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// RecordTransition records an observer state transition.
func (m *Metrics) RecordTransition(state string) {
	if m == nil {
		return
	}
	m.lifecycleTransitions.WithLabelValues(state).Inc()
}

// RecordAdapterStopError records an adapter that failed to stop.
func (m *Metrics) RecordAdapterStopError(adapter string) {
	if m == nil {
		return
	}
	m.adapterStopErrors.WithLabelValues(adapter).Inc()
}

// RecordIngested records signals handled by the ingestion server.
func (m *Metrics) RecordIngested(result string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.ingestedSignals.WithLabelValues(result).Add(float64(count))
}

// RecordThrottled records one rate limited ingestion request.
func (m *Metrics) RecordThrottled() {
	if m == nil {
		return
	}
	m.throttledRequests.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware creates HTTP middleware that records request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		m.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(wrapped.statusCode), time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
