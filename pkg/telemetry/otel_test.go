package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/polisai/hawkeye-go/pkg/domain"
)

func TestSetupProviderWithoutEndpointIsNoop(t *testing.T) {
	prev := otel.GetTracerProvider()

	shutdown, err := SetupProvider(context.Background(), Config{})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, prev, otel.GetTracerProvider())
}

func TestSetupProviderExportsToCollector(t *testing.T) {
	collector, addr := startMockTraceCollector(t)

	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdown, err := SetupProvider(ctx, Config{
		Endpoint:    addr,
		Insecure:    true,
		Environment: "staging",
	})
	require.NoError(t, err)

	_, span := Tracer().Start(ctx, "hawkeye.flush")
	span.End()

	require.NoError(t, shutdown(ctx))

	spans := collector.WaitForSpans(ctx, 1)
	require.Len(t, spans, 1)
	assert.Equal(t, "hawkeye.flush", spans[0].GetName())
	assert.Equal(t, DefaultServiceName, collector.ResourceAttribute("service.name"))
	assert.Equal(t, "staging", collector.ResourceAttribute("deployment.environment"))
}

func TestBatchAttributes(t *testing.T) {
	assert.Equal(t, []attribute.KeyValue{attribute.Int("hawkeye.batch.size", 0)}, BatchAttributes("", nil))

	attrs := attribute.NewSet(BatchAttributes("https://ingest/v1/events", []domain.Signal{{
		EventType:      domain.EventClick,
		SessionID:      "s1",
		Environment:    "production",
		IdempotencyKey: "s1-t-1",
		Metadata:       map[string]any{"email": "a@b.c"},
	}})...)

	value, ok := attrs.Value("hawkeye.batch.first_key")
	require.True(t, ok)
	assert.Equal(t, "s1-t-1", value.AsString())
	_, ok = attrs.Value("email")
	assert.False(t, ok)
}
