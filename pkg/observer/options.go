package observer

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/polisai/hawkeye-go/pkg/adapters"
	"github.com/polisai/hawkeye-go/pkg/metrics"
	"github.com/polisai/hawkeye-go/pkg/queue"
)

// Option configures an Observer.
type Option func(*Observer)

// WithLogger sets the logger used when debug output is enabled.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Observer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEventSource sets the host UI event source the built-in adapters
// subscribe to. Without a source, and without a navigation notifier, no
// built-in adapters are started.
func WithEventSource(src adapters.EventSource) Option {
	return func(o *Observer) { o.source = src }
}

// WithNavigation sets the route change notifier used by the navigation
// adapter.
func WithNavigation(n adapters.NavigationNotifier) Option {
	return func(o *Observer) { o.navigation = n }
}

// WithAdapters replaces the built-in adapter set.
func WithAdapters(factories ...adapters.Factory) Option {
	return func(o *Observer) {
		o.factories = factories
		o.customAdapters = true
	}
}

// WithHTTPClient sets the HTTP client used by the default delivery client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Observer) { o.httpClient = client }
}

// WithDeliveryClient replaces the HTTP delivery client.
func WithDeliveryClient(sender queue.Sender) Option {
	return func(o *Observer) { o.sender = sender }
}

// WithMetrics records queue and lifecycle metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Observer) { o.metrics = m }
}

// WithTracer sets the tracer used for delivery spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Observer) { o.tracer = tracer }
}

// WithFilter sets the admission filter applied before enqueue.
func WithFilter(f queue.Filter) Option {
	return func(o *Observer) { o.filter = f }
}

// WithClock overrides the timestamp clock.
func WithClock(now func() time.Time) Option {
	return func(o *Observer) {
		if now != nil {
			o.now = now
		}
	}
}

// WithInitialRoute sets the route a new session starts on.
func WithInitialRoute(route string) Option {
	return func(o *Observer) { o.initialRoute = route }
}
