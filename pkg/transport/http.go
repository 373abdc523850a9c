// Package transport delivers signal batches to the ingestion endpoint.
//
// The client performs exactly one HTTP request per Send and never retries;
// retry is the queue's responsibility.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/polisai/hawkeye-go/pkg/domain"
)

const (
	// EventsPath is appended to the ingestion URL unless already present.
	EventsPath = "/v1/events"

	// APIKeyHeader carries the API key on every request.
	APIKeyHeader = "X-API-Key"

	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

// Option customises an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client. Its transport is
// wrapped with OpenTelemetry instrumentation.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		c.timeout = d
	}
}

// HTTPClient posts ingestion requests as JSON. It holds no state beyond the
// endpoint and API key.
type HTTPClient struct {
	endpoint   string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

// NewHTTPClient builds a client for ingestionURL.
func NewHTTPClient(ingestionURL, apiKey string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		endpoint: EndpointURL(ingestionURL),
		apiKey:   apiKey,
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	} else {
		clone := *c.httpClient
		c.httpClient = &clone
	}

	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.httpClient.Transport = otelhttp.NewTransport(base,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "hawkeye.deliver " + r.Method
		}),
	)

	return c
}

// EndpointURL appends EventsPath to base unless it already ends with it.
func EndpointURL(base string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(base), "/")
	if strings.HasSuffix(trimmed, EventsPath) {
		return trimmed
	}
	return trimmed + EventsPath
}

// Endpoint returns the resolved delivery URL.
func (c *HTTPClient) Endpoint() string {
	return c.endpoint
}

// APIKey returns the credential attached to requests.
func (c *HTTPClient) APIKey() string {
	return c.apiKey
}

// Send performs one POST of req. Any non-2xx status and any network or
// decoding failure is returned as a *domain.TransportError.
func (c *HTTPClient) Send(ctx context.Context, req *domain.IngestRequest) (*domain.IngestResponse, error) {
	if req == nil {
		return nil, &domain.TransportError{Err: errors.New("nil ingest request")}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &domain.TransportError{Err: fmt.Errorf("encode request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.TransportError{Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(APIKeyHeader, c.apiKey)
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("User-Agent", "hawkeye-go/"+domain.SDKVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.TransportError{Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.TransportError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if len(bytes.TrimSpace(payload)) == 0 {
		return &domain.IngestResponse{Success: true}, nil
	}

	var ack domain.IngestResponse
	if err := json.Unmarshal(payload, &ack); err != nil {
		return nil, &domain.TransportError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return &ack, nil
}
