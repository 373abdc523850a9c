package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Delivery outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	metricsOnce              sync.Once
	metricsInitErr           error
	deliveryBatchCounter     metric.Int64Counter
	deliverySignalCounter    metric.Int64Counter
	deliveryLatencyHistogram metric.Float64Histogram
)

// DeliveryMetrics captures the fields needed to record one delivery attempt.
type DeliveryMetrics struct {
	Endpoint    string
	Environment string
	Signals     int
	Outcome     string
	StatusCode  int
	Duration    time.Duration
}

// RecordDelivery emits counters and a latency histogram for a delivery attempt.
func RecordDelivery(ctx context.Context, m DeliveryMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("delivery.outcome", m.Outcome),
		attribute.String("deployment.environment", m.Environment),
	}
	if m.Endpoint != "" {
		attrs = append(attrs, attribute.String("delivery.endpoint", m.Endpoint))
	}
	if m.StatusCode != 0 {
		attrs = append(attrs, attribute.Int("http.response.status_code", m.StatusCode))
	}

	deliveryBatchCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if m.Signals > 0 {
		deliverySignalCounter.Add(ctx, int64(m.Signals), metric.WithAttributes(attrs...))
	}

	if m.Duration > 0 {
		deliveryLatencyHistogram.Record(ctx, float64(m.Duration)/float64(time.Millisecond), metric.WithAttributes(attrs...))
	}
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter(InstrumentationName)

		deliveryBatchCounter, metricsInitErr = meter.Int64Counter(
			"hawkeye.delivery.batches",
			metric.WithDescription("Delivery attempts partitioned by outcome"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		deliverySignalCounter, metricsInitErr = meter.Int64Counter(
			"hawkeye.delivery.signals",
			metric.WithDescription("Signals carried by delivery attempts"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		deliveryLatencyHistogram, metricsInitErr = meter.Float64Histogram(
			"hawkeye.delivery.duration_ms",
			metric.WithDescription("Observed delivery latency"),
			metric.WithUnit("ms"),
		)
	})

	return metricsInitErr
}

// RecordAdmission attaches an admission decision to the provided span without
// leaking signal payloads.
func RecordAdmission(span trace.Span, eventType string, allowed bool, droppedKeys int) {
	if span == nil || !span.IsRecording() {
		return
	}

	span.AddEvent("hawkeye.admission", trace.WithAttributes(
		attribute.String("hawkeye.event_type", eventType),
		attribute.Bool("hawkeye.admission.allowed", allowed),
		attribute.Int("hawkeye.admission.dropped_keys", droppedKeys),
	))
}
