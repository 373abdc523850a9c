package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polisai/hawkeye-go/pkg/domain"
)

func sampleRequest() *domain.IngestRequest {
	return &domain.IngestRequest{
		APIKey:     "key-1",
		SDKVersion: domain.SDKVersion,
		Events: []domain.Signal{
			{
				EventType:      domain.EventClick,
				Timestamp:      "2024-01-02T03:04:05.006Z",
				SessionID:      "sess",
				Route:          "/",
				Target:         domain.Target{Type: domain.TargetElement, Selector: "#buy"},
				Metadata:       map[string]any{"clientX": 10},
				Environment:    "production",
				IdempotencyKey: "sess-2024-01-02T03:04:05.006Z-1",
			},
		},
	}
}

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		base     string
		expected string
	}{
		{"https://ingest.example.com", "https://ingest.example.com/v1/events"},
		{"https://ingest.example.com/", "https://ingest.example.com/v1/events"},
		{"https://ingest.example.com/v1/events", "https://ingest.example.com/v1/events"},
		{"https://ingest.example.com/v1/events/", "https://ingest.example.com/v1/events"},
		{"http://localhost:8080/api", "http://localhost:8080/api/v1/events"},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			assert.Equal(t, tt.expected, EndpointURL(tt.base))
		})
	}
}

func TestSendSuccess(t *testing.T) {
	var received domain.IngestRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, EventsPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "key-1", r.Header.Get(APIKeyHeader))
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"processed":1}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "key-1")
	resp, err := client.Send(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Processed)
	require.Len(t, received.Events, 1)
	assert.Equal(t, "key-1", received.APIKey)
	assert.Equal(t, domain.SDKVersion, received.SDKVersion)
	assert.Equal(t, "sess-2024-01-02T03:04:05.006Z-1", received.Events[0].IdempotencyKey)
}

func TestSendWireFieldNames(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL, "key-1").Send(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Contains(t, raw, "api_key")
	assert.Contains(t, raw, "sdk_version")
	events := raw["events"].([]any)
	event := events[0].(map[string]any)
	for _, field := range []string{"eventType", "timestamp", "sessionId", "route", "target", "metadata", "environment", "idempotencyKey"} {
		assert.Contains(t, event, field)
	}
}

func TestSendEmptyBodyIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	resp, err := NewHTTPClient(server.URL, "k").Send(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestSendNonSuccessStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	resp, err := NewHTTPClient(server.URL, "k").Send(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, int32(1), calls.Load(), "client must not retry")

	var transportErr *domain.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, http.StatusServiceUnavailable, transportErr.StatusCode)
	assert.True(t, domain.IsTransportError(err))
}

func TestSendUndecodableBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL, "k").Send(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.True(t, domain.IsTransportError(err))
}

func TestSendNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewHTTPClient(url, "k").Send(context.Background(), sampleRequest())
	require.Error(t, err)

	var transportErr *domain.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Zero(t, transportErr.StatusCode)
	assert.NotNil(t, transportErr.Err)
}

func TestSendNilRequest(t *testing.T) {
	_, err := NewHTTPClient("http://localhost", "k").Send(context.Background(), nil)
	assert.True(t, domain.IsTransportError(err))
}

func TestWithHTTPClientDoesNotMutateCaller(t *testing.T) {
	base := &http.Client{}
	c := NewHTTPClient("http://localhost", "k", WithHTTPClient(base))
	assert.Nil(t, base.Transport)
	assert.NotNil(t, c.httpClient.Transport)
	assert.Equal(t, "http://localhost/v1/events", c.Endpoint())
	assert.Equal(t, "k", c.APIKey())
}
