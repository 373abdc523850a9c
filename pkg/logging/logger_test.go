package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "debug", Output: &buf})

	logger.Debug("flush complete", "count", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "flush complete", record["msg"])
	assert.Equal(t, float64(3), record["count"])
}

func TestNewTextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "warn", Format: "text", Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
}

func TestGate(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: "debug", Output: &buf})

	Gate(base, false).Error("silenced")
	assert.Empty(t, buf.String())

	Gate(base, true).Debug("visible")
	assert.Contains(t, buf.String(), "visible")

	assert.Equal(t, slog.Default(), Gate(nil, true))
}

func TestTraceAttrs(t *testing.T) {
	assert.Nil(t, TraceAttrs(context.Background()))

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	attrs := TraceAttrs(ctx)
	require.Len(t, attrs, 2)
	assert.Equal(t, "trace_id", attrs[0].Key)
	assert.Equal(t, span.SpanContext().TraceID().String(), attrs[0].Value.String())
}
