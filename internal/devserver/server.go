// Package devserver is a local ingestion endpoint for exercising the
// collector without the production backend.
package devserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/polisai/hawkeye-go/internal/devstore"
	"github.com/polisai/hawkeye-go/internal/governance"
	"github.com/polisai/hawkeye-go/pkg/domain"
	"github.com/polisai/hawkeye-go/pkg/metrics"
	"github.com/polisai/hawkeye-go/pkg/policy"
	"github.com/polisai/hawkeye-go/pkg/transport"
)

const (
	maxPayloadBytes = 500 * 1024
	maxBatchSize    = 100
)

// Store persists accepted signals.
type Store interface {
	Insert(ctx context.Context, apiKey string, events []domain.Signal) (inserted, duplicates int, err error)
	Count(ctx context.Context) (int, error)
}

var _ Store = (*devstore.Store)(nil)

// Server handles POST /v1/events, GET /healthz and GET /metrics.
type Server struct {
	store    Store
	apiKey   string
	logger   *slog.Logger
	metrics  *metrics.Metrics
	scrubber policy.Filter
	limiter  *governance.RateLimiter
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics exposes m on /metrics and records request metrics on it.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithFilter replaces the server-side privacy filter.
func WithFilter(f policy.Filter) Option {
	return func(s *Server) { s.scrubber = f }
}

// WithRateLimiter throttles ingestion per API key.
func WithRateLimiter(rl *governance.RateLimiter) Option {
	return func(s *Server) { s.limiter = rl }
}

// New builds a server accepting apiKey.
func New(store Store, apiKey string, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:    store,
		apiKey:   apiKey,
		logger:   logger,
		scrubber: policy.DefaultPIIScrubber(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	return s
}

// Handler returns the instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	var events http.Handler = http.HandlerFunc(s.handleEvents)
	if s.limiter != nil {
		events = s.limiter.Middleware(extractAPIKey, func(*http.Request) {
			s.metrics.RecordThrottled()
		})(events)
	}

	mux.Handle("POST "+transport.EventsPath, events)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", s.metrics.Handler())

	return otelhttp.NewHandler(s.metrics.Middleware(mux), "hawkeye.devserver")
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.Count(r.Context())
	if err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "events": n})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	key := extractAPIKey(r)
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
		writeJSON(w, http.StatusUnauthorized, domain.IngestResponse{Message: "invalid api key"})
		return
	}

	var req domain.IngestRequest
	body := http.MaxBytesReader(w, r.Body, maxPayloadBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, domain.IngestResponse{Message: "payload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, domain.IngestResponse{Message: "invalid JSON"})
		return
	}
	if len(req.Events) > maxBatchSize {
		writeJSON(w, http.StatusRequestEntityTooLarge, domain.IngestResponse{
			Message: fmt.Sprintf("batch exceeds %d events", maxBatchSize),
		})
		return
	}

	accepted := make([]domain.Signal, 0, len(req.Events))
	for i, ev := range req.Events {
		if err := validate(ev); err != nil {
			s.logger.Debug("rejected event", "index", i, "error", err)
			continue
		}
		if s.scrubber != nil {
			var ok bool
			if ev, ok = s.scrubber.Admit(r.Context(), ev); !ok {
				continue
			}
		}
		accepted = append(accepted, ev)
	}
	s.metrics.RecordIngested("invalid", len(req.Events)-len(accepted))

	start := time.Now()
	inserted, duplicates, err := s.store.Insert(r.Context(), key, accepted)
	if err != nil {
		s.logger.Error("failed to store events", "count", len(accepted), "error", err)
		writeJSON(w, http.StatusInternalServerError, domain.IngestResponse{Message: "failed to store events"})
		return
	}
	s.metrics.RecordIngested("stored", inserted)
	s.metrics.RecordIngested("duplicate", duplicates)

	s.logger.Info("events ingested",
		"sdk_version", req.SDKVersion,
		"received", len(req.Events),
		"stored", inserted,
		"duplicates", duplicates,
		"duration", time.Since(start),
	)

	writeJSON(w, http.StatusOK, domain.IngestResponse{
		Success:   true,
		Processed: inserted + duplicates,
		Message:   fmt.Sprintf("stored %d, duplicates %d", inserted, duplicates),
	})
}

func extractAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(transport.APIKeyHeader)); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func validate(ev domain.Signal) error {
	switch {
	case ev.EventType == "":
		return errors.New("eventType is required")
	case ev.SessionID == "":
		return errors.New("sessionId is required")
	case ev.Route == "":
		return errors.New("route is required")
	case ev.Timestamp == "":
		return errors.New("timestamp is required")
	}
	if _, err := time.Parse(time.RFC3339, ev.Timestamp); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
