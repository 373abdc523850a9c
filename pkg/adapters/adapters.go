// Package adapters turns host UI events into raw signals.
//
// Each adapter subscribes to an EventSource while running and forwards the
// signals it builds to a Sink. Adapters never enrich signals; environment and
// idempotency keys are assigned downstream.
package adapters

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/polisai/hawkeye-go/pkg/domain"
)

// ErrNoEventSource is returned by Start when an adapter has no source to
// subscribe to.
var ErrNoEventSource = errors.New("adapters: no event source configured")

// Adapter is a start/stop-able source of raw signals.
type Adapter interface {
	Name() string
	Start() error
	Stop() error
}

// Sink receives raw signals.
type Sink interface {
	Add(sig domain.Signal)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(sig domain.Signal)

// Add calls f.
func (f SinkFunc) Add(sig domain.Signal) { f(sig) }

// RouteTracker exposes the session fields adapters read and the route they
// update on navigation.
type RouteTracker interface {
	ID() string
	CurrentRoute() string
	UpdateRoute(route string)
}

// Deps are the collaborators shared by every adapter.
type Deps struct {
	Source  EventSource
	Session RouteTracker
	Sink    Sink

	// Navigation overrides the route change notifier. When nil the
	// navigation adapter listens for "navigation" events on Source.
	Navigation NavigationNotifier

	// ScrollWindow overrides the scroll throttle window.
	ScrollWindow time.Duration

	// Now overrides the timestamp clock.
	Now func() time.Time
}

// Factory builds an adapter from shared dependencies.
type Factory func(Deps) Adapter

// DefaultFactories lists the built-in adapters in start order.
func DefaultFactories() []Factory {
	return []Factory{
		func(d Deps) Adapter { return NewClick(d) },
		func(d Deps) Adapter { return NewScroll(d) },
		func(d Deps) Adapter { return NewInput(d) },
		func(d Deps) Adapter { return NewErrors(d) },
		func(d Deps) Adapter { return NewNavigation(d) },
	}
}

// Default returns the five built-in adapters: click, scroll, input, error
// and navigation.
func Default(deps Deps) []Adapter {
	factories := DefaultFactories()
	out := make([]Adapter, 0, len(factories))
	for _, f := range factories {
		out = append(out, f(deps))
	}
	return out
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) emit(eventType, route string, target domain.Target, metadata map[string]any) {
	if d.Sink == nil || d.Session == nil {
		return
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	d.Sink.Add(domain.Signal{
		EventType: eventType,
		Timestamp: domain.FormatTimestamp(d.now()),
		SessionID: d.Session.ID(),
		Route:     route,
		Target:    target,
		Metadata:  metadata,
	})
}

func (d Deps) route() string {
	if d.Session == nil {
		return "/"
	}
	return d.Session.CurrentRoute()
}

// subscription holds the unsubscribe functions of a running adapter.
type subscription struct {
	mu     sync.Mutex
	cancel []func()
}

func (s *subscription) start(src EventSource, handlers map[string]Handler) error {
	if src == nil {
		return ErrNoEventSource
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	s.cancel = make([]func(), 0, len(handlers))
	for kind, h := range handlers {
		s.cancel = append(s.cancel, src.Subscribe(kind, h))
	}
	return nil
}

func (s *subscription) stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	for _, fn := range cancel {
		if fn != nil {
			fn()
		}
	}
}

func isTag(el ElementInfo, tags ...string) bool {
	for _, tag := range tags {
		if strings.EqualFold(el.TagName, tag) {
			return true
		}
	}
	return false
}
