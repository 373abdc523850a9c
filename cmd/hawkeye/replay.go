package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/polisai/hawkeye-go/pkg/adapters"
	"github.com/polisai/hawkeye-go/pkg/config"
	"github.com/polisai/hawkeye-go/pkg/domain"
	"github.com/polisai/hawkeye-go/pkg/metrics"
	"github.com/polisai/hawkeye-go/pkg/observer"
	"github.com/polisai/hawkeye-go/pkg/policy"
	"github.com/polisai/hawkeye-go/pkg/telemetry"
)

const maxLineBytes = 1 << 20

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay recorded UI events through the collector",
		Long: `Replay reads newline-delimited JSON records and feeds them to a collector.

Each line is either a UI event, e.g.
  {"kind":"click","target":{"tagName":"DIV","id":"buy"},"clientX":10,"clientY":20}
or a custom capture:
  {"capture":{"eventType":"checkout_abandoned","target":{"type":"custom"},"metadata":{"items":2}}}`,
		Args: cobra.NoArgs,
		RunE: runReplay,
	}

	cmd.Flags().StringP("config", "c", "", "Path to configuration file (YAML)")
	cmd.Flags().StringP("input", "i", "", "Path to the JSONL input (defaults to stdin)")
	cmd.Flags().Bool("watch", false, "Re-initialise the collector when the config file changes")
	return cmd
}

// replayRecord is one input line.
type replayRecord struct {
	Capture *captureRecord `json:"capture,omitempty"`
	adapters.DOMEvent
}

type captureRecord struct {
	EventType string         `json:"eventType"`
	Target    domain.Target  `json:"target"`
	Metadata  map[string]any `json:"metadata"`
}

// replayTarget receives decoded records.
type replayTarget interface {
	Publish(ev adapters.DOMEvent)
	CaptureEvent(eventType string, target domain.Target, metadata map[string]any)
}

// replayStats counts processed input lines.
type replayStats struct {
	Events   int
	Captures int
	Skipped  int
}

// replayInput decodes r line by line until EOF or ctx is done.
func replayInput(ctx context.Context, r io.Reader, target replayTarget, logger *slog.Logger) (replayStats, error) {
	var stats replayStats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line++

		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec replayRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			logger.Warn("Skipping malformed record", "line", line, "error", err)
			stats.Skipped++
			continue
		}

		switch {
		case rec.Capture != nil && rec.Capture.EventType != "":
			target.CaptureEvent(rec.Capture.EventType, rec.Capture.Target, rec.Capture.Metadata)
			stats.Captures++
		case rec.Kind != "":
			target.Publish(rec.DOMEvent)
			stats.Events++
		default:
			logger.Warn("Skipping record without kind or capture", "line", line)
			stats.Skipped++
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read input: %w", err)
	}
	return stats, nil
}

// collector owns the bus and the current observer so a config reload can
// swap the observer while input is being replayed.
type collector struct {
	bus     *adapters.Bus
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu  sync.RWMutex
	obs *observer.Observer
}

func newCollector(logger *slog.Logger, m *metrics.Metrics) *collector {
	return &collector{bus: adapters.NewBus(), metrics: m, logger: logger}
}

// Publish implements replayTarget.
func (c *collector) Publish(ev adapters.DOMEvent) {
	c.bus.Publish(ev)
}

// CaptureEvent implements replayTarget.
func (c *collector) CaptureEvent(eventType string, target domain.Target, metadata map[string]any) {
	c.mu.RLock()
	obs := c.obs
	c.mu.RUnlock()
	if obs != nil {
		obs.CaptureEvent(eventType, target, metadata)
	}
}

// Apply tears down the running observer, if any, and starts a new one for
// cfg.
func (c *collector) Apply(ctx context.Context, cfg *config.FileConfig) error {
	filter, err := buildFilter(ctx, cfg.Policy, c.logger)
	if err != nil {
		return err
	}

	next := observer.New(
		observer.WithLogger(c.logger),
		observer.WithEventSource(c.bus),
		observer.WithMetrics(c.metrics),
		observer.WithTracer(telemetry.Tracer()),
		observer.WithFilter(filter),
	)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.obs != nil {
		c.obs.Teardown(ctx)
		c.obs = nil
	}

	if err := next.Initialize(ctx, cfg.Observer); err != nil {
		return fmt.Errorf("initialize collector: %w", err)
	}
	c.obs = next
	c.logger.Info("Collector running", "session_id", next.SessionID())
	return nil
}

// Close tears down the running observer.
func (c *collector) Close(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.obs != nil {
		c.obs.Teardown(ctx)
		c.obs = nil
	}
}

// buildFilter assembles the admission filters named by cfg. A nil filter
// admits everything.
func buildFilter(ctx context.Context, cfg config.PolicyConfig, logger *slog.Logger) (policy.Filter, error) {
	var filters []policy.Filter
	if cfg.ScrubPIIEnabled() {
		filters = append(filters, policy.DefaultPIIScrubber())
	}
	if cfg.File != "" {
		rego, err := policy.LoadRegoFilter(ctx, cfg.File, cfg.Entrypoint, logger)
		if err != nil {
			return nil, err
		}
		filters = append(filters, rego)
	}
	if len(filters) == 0 {
		return nil, nil
	}
	return policy.Chain(filters...), nil
}

func runReplay(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	inputPath, _ := cmd.Flags().GetString("input")
	watch, _ := cmd.Flags().GetBool("watch")

	fileCfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}

	logger, err := loggerFromFlags(cmd, cmd.ErrOrStderr(), fileCfg.Logging.Level, fileCfg.Logging.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: fileCfg.Telemetry.ServiceName,
		Endpoint:    fileCfg.Telemetry.OTLPEndpoint,
		Insecure:    fileCfg.Telemetry.Insecure,
		Environment: fileCfg.Observer.Environment,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("Failed to flush traces", "error", err)
		}
	}()

	m := metrics.New()
	if fileCfg.Metrics.Address != "" {
		stopMetrics := serveMetrics(fileCfg.Metrics, m, logger)
		defer stopMetrics()
	}

	c := newCollector(logger, m)
	if err := c.Apply(ctx, fileCfg); err != nil {
		return err
	}
	defer c.Close(context.Background())

	if watch {
		if configPath == "" {
			return errors.New("--watch requires --config")
		}
		watcher, err := config.NewWatcher(configPath, func(next *config.FileConfig) error {
			return c.Apply(ctx, next)
		}, logger)
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = watcher.Stop() }()
	}

	input := io.Reader(cmd.InOrStdin())
	if inputPath != "" {
		//nolint:gosec // Input path is supplied by the operator
		f, err := os.Open(inputPath)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		input = f
	}

	start := time.Now()
	stats, err := replayInput(ctx, input, c, logger)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("Replay complete",
		"events", stats.Events,
		"captures", stats.Captures,
		"skipped", stats.Skipped,
		"duration", time.Since(start),
	)

	if watch && ctx.Err() == nil {
		logger.Info("Watching for config changes; press Ctrl+C to exit")
		<-ctx.Done()
	}
	return nil
}

// serveMetrics exposes m on cfg.Address and returns a shutdown function.
func serveMetrics(cfg config.MetricsConfig, m *metrics.Metrics, logger *slog.Logger) func() {
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Serving metrics", "addr", cfg.Address, "path", path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
