// Package observer coordinates the collector lifecycle.
//
// An Observer owns the resolved configuration, the session, the delivery
// queue and the running adapters. It moves through Uninitialized,
// Initializing, Running and TearingDown; only one Initialize or Teardown runs
// at a time. None of its methods panic and delivery failures never reach the
// host.
package observer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/polisai/hawkeye-go/pkg/adapters"
	"github.com/polisai/hawkeye-go/pkg/config"
	"github.com/polisai/hawkeye-go/pkg/domain"
	"github.com/polisai/hawkeye-go/pkg/logging"
	"github.com/polisai/hawkeye-go/pkg/metrics"
	"github.com/polisai/hawkeye-go/pkg/queue"
	"github.com/polisai/hawkeye-go/pkg/session"
	"github.com/polisai/hawkeye-go/pkg/transport"
)

// ErrLifecycleBusy is returned by Initialize while another transition is in
// progress.
var ErrLifecycleBusy = errors.New("observer: lifecycle transition in progress")

// State is the lifecycle state of an Observer.
type State int32

// Lifecycle states.
const (
	Uninitialized State = iota
	Initializing
	Running
	TearingDown
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case TearingDown:
		return "tearing_down"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// components are the runtime parts owned while Running.
type components struct {
	cfg      *config.Config
	session  *session.Session
	queue    *queue.Queue
	adapters []adapters.Adapter
	logger   *slog.Logger
}

// Observer is a constructible collector handle.
type Observer struct {
	logger         *slog.Logger
	source         adapters.EventSource
	navigation     adapters.NavigationNotifier
	factories      []adapters.Factory
	customAdapters bool
	httpClient     *http.Client
	sender         queue.Sender
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	filter         queue.Filter
	now            func() time.Time
	initialRoute   string

	mu    sync.Mutex
	state atomic.Int32
	rt    atomic.Pointer[components]
}

// New builds an Observer in the Uninitialized state.
func New(opts ...Option) *Observer {
	o := &Observer{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current lifecycle state.
func (o *Observer) State() State {
	return State(o.state.Load())
}

// SessionID returns the active session id, or "" when not running.
func (o *Observer) SessionID() string {
	if rt := o.rt.Load(); rt != nil {
		return rt.session.ID()
	}
	return ""
}

// Pending reports the number of buffered signals.
func (o *Observer) Pending() int {
	if rt := o.rt.Load(); rt != nil {
		return rt.queue.Len()
	}
	return 0
}

func (o *Observer) setState(s State) {
	o.state.Store(int32(s))
	o.metrics.RecordTransition(s.String())
}

// Initialize validates cfg and starts collecting. Calling Initialize on a
// running Observer is a no-op. On failure the Observer stays Uninitialized
// and the error is returned; Initialize never panics.
func (o *Observer) Initialize(ctx context.Context, cfg config.UserConfig) (err error) {
	if done, err := o.checkRunning(); done {
		return err
	}

	if !o.mu.TryLock() {
		return ErrLifecycleBusy
	}
	defer o.mu.Unlock()

	if done, err := o.checkRunning(); done {
		return err
	}

	o.setState(Initializing)
	logger := logging.Gate(o.logger, cfg.EnableDebug)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer: initialization panicked: %v", r)
		}
		if err != nil {
			o.rt.Store(nil)
			o.setState(Uninitialized)
			logger.Debug("initialization failed", "error", err)
		}
	}()

	rt, err := o.build(ctx, cfg)
	if err != nil {
		return err
	}

	o.rt.Store(rt)
	o.setState(Running)

	rt.logger.Debug("initialized",
		"session_id", rt.session.ID(),
		"ingestion_url", rt.cfg.IngestionURL(),
		"environment", rt.cfg.Environment(),
		"adapters", len(rt.adapters),
	)
	return nil
}

// checkRunning reports whether Initialize should return immediately and
// with what.
func (o *Observer) checkRunning() (bool, error) {
	switch o.State() {
	case Running:
		if rt := o.rt.Load(); rt != nil {
			rt.logger.Warn("already initialized; ignoring duplicate initialize call")
		}
		return true, nil
	case Initializing, TearingDown:
		return true, ErrLifecycleBusy
	default:
		return false, nil
	}
}

func (o *Observer) build(_ context.Context, user config.UserConfig) (*components, error) {
	cfg, err := config.Resolve(user)
	if err != nil {
		return nil, err
	}
	logger := logging.Gate(o.logger, cfg.DebugEnabled())

	sess := session.New(o.initialRoute)

	var endpoint string
	sender := o.sender
	if sender == nil {
		var topts []transport.Option
		if o.httpClient != nil {
			topts = append(topts, transport.WithHTTPClient(o.httpClient))
		}
		client := transport.NewHTTPClient(cfg.IngestionURL(), cfg.APIKey(), topts...)
		endpoint = client.Endpoint()
		sender = client
	} else {
		endpoint = transport.EndpointURL(cfg.IngestionURL())
	}

	q := queue.New(sender, queue.Options{
		APIKey:        cfg.APIKey(),
		Environment:   cfg.Environment(),
		BatchSize:     cfg.BatchSize(),
		BatchInterval: cfg.BatchInterval(),
		Endpoint:      endpoint,
		Filter:        o.filter,
		Metrics:       o.metrics,
		Tracer:        o.tracer,
		Logger:        logger,
	})

	deps := adapters.Deps{
		Source:     o.source,
		Session:    sess,
		Sink:       q,
		Navigation: o.navigation,
		Now:        o.now,
	}

	rt := &components{
		cfg:      cfg,
		session:  sess,
		queue:    q,
		adapters: o.buildAdapters(deps),
		logger:   logger,
	}

	q.Start()
	for i, a := range rt.adapters {
		if err := startAdapter(a); err != nil {
			q.Stop()
			for _, started := range rt.adapters[:i] {
				if stopErr := stopAdapter(started); stopErr != nil {
					logger.Debug("failed to stop adapter", "adapter", started.Name(), "error", stopErr)
				}
			}
			return nil, fmt.Errorf("start %s adapter: %w", a.Name(), err)
		}
	}

	return rt, nil
}

// buildAdapters returns the adapter set. Without a custom set the built-in
// adapters run only for what the host can observe: all of them with an event
// source, navigation alone with just a notifier, none otherwise.
func (o *Observer) buildAdapters(deps adapters.Deps) []adapters.Adapter {
	factories := o.factories
	if !o.customAdapters {
		switch {
		case o.source != nil:
			factories = adapters.DefaultFactories()
		case o.navigation != nil:
			factories = []adapters.Factory{
				func(d adapters.Deps) adapters.Adapter { return adapters.NewNavigation(d) },
			}
		default:
			return nil
		}
	}

	out := make([]adapters.Adapter, 0, len(factories))
	for _, f := range factories {
		if f == nil {
			continue
		}
		if a := f(deps); a != nil {
			out = append(out, a)
		}
	}
	return out
}

func startAdapter(a adapters.Adapter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.Start()
}

func stopAdapter(a adapters.Adapter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			err = &domain.AdapterStopError{Adapter: a.Name(), Err: err}
		}
	}()
	return a.Stop()
}

// CaptureEvent records a custom signal. It is a no-op unless the Observer is
// Running.
func (o *Observer) CaptureEvent(eventType string, target domain.Target, metadata map[string]any) {
	if o.State() != Running {
		return
	}
	rt := o.rt.Load()
	if rt == nil {
		return
	}

	if target.Type == "" {
		target.Type = domain.TargetUnknown
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	rt.queue.Add(domain.Signal{
		EventType: eventType,
		Timestamp: domain.FormatTimestamp(o.now()),
		SessionID: rt.session.ID(),
		Route:     rt.session.CurrentRoute(),
		Target:    target,
		Metadata:  metadata,
	})
}

// Flush delivers everything buffered. It is a no-op when no queue exists.
func (o *Observer) Flush(ctx context.Context) {
	if rt := o.rt.Load(); rt != nil {
		rt.queue.Flush(ctx)
	}
}

// Teardown flushes pending signals, stops the timer and every adapter, and
// returns the Observer to Uninitialized. It is a no-op unless Running.
// Adapter stop failures are logged and counted; they never prevent the
// remaining adapters from stopping and are not reported to the caller.
func (o *Observer) Teardown(ctx context.Context) {
	if o.State() != Running {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.State() != Running {
		return
	}
	rt := o.rt.Load()
	o.setState(TearingDown)

	rt.queue.Wait()
	rt.queue.Flush(ctx)
	rt.queue.Stop()

	for _, a := range rt.adapters {
		if err := stopAdapter(a); err != nil {
			o.metrics.RecordAdapterStopError(a.Name())
			rt.logger.Debug("failed to stop adapter", "adapter", a.Name(), "error", err)
		}
	}

	remaining := rt.queue.Len()
	o.rt.Store(nil)
	o.setState(Uninitialized)

	rt.logger.Debug("teardown complete", "session_id", rt.session.ID(), "undelivered", remaining)
}
