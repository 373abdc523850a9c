package adapters

import (
	"sync"
	"time"

	"github.com/polisai/hawkeye-go/pkg/domain"
)

// NavigationNotifier reports route changes. Watch calls fn with the current
// route whenever it may have changed; fn must tolerate repeats. The returned
// stop function is idempotent and no fn call starts after it returns.
type NavigationNotifier interface {
	Watch(fn func(route string)) (stop func())
}

// SourceNotifier turns "navigation" events on an EventSource into route
// changes.
type SourceNotifier struct {
	Source EventSource
}

// Watch implements NavigationNotifier.
func (n SourceNotifier) Watch(fn func(route string)) func() {
	if n.Source == nil {
		return func() {}
	}
	return n.Source.Subscribe(KindNavigation, func(ev DOMEvent) {
		if ev.Route != "" {
			fn(ev.Route)
		}
	})
}

// DefaultPollInterval is used by Poller when Interval is zero.
const DefaultPollInterval = 250 * time.Millisecond

// Poller samples a route getter on a fixed interval. Use it on hosts that
// offer no navigation notification.
type Poller struct {
	Get      func() string
	Interval time.Duration
}

// Watch implements NavigationNotifier.
func (p Poller) Watch(fn func(route string)) func() {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if p.Get != nil {
					fn(p.Get())
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
		})
	}
}

// Navigation updates the session route and emits a navigation signal when
// the route changes.
type Navigation struct {
	deps     Deps
	notifier NavigationNotifier

	mu      sync.Mutex
	running bool
	last    string
	stop    func()
}

// NewNavigation builds a navigation adapter. It uses deps.Navigation when set
// and the event source otherwise.
func NewNavigation(deps Deps) *Navigation {
	notifier := deps.Navigation
	if notifier == nil && deps.Source != nil {
		notifier = SourceNotifier{Source: deps.Source}
	}
	return &Navigation{deps: deps, notifier: notifier}
}

// Name implements Adapter.
func (n *Navigation) Name() string { return "navigation" }

// Start implements Adapter.
func (n *Navigation) Start() error {
	if n.notifier == nil {
		return ErrNoEventSource
	}

	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return nil
	}
	n.running = true
	n.last = n.deps.route()
	n.mu.Unlock()

	stop := n.notifier.Watch(n.handle)

	n.mu.Lock()
	n.stop = stop
	n.mu.Unlock()
	return nil
}

// Stop implements Adapter.
func (n *Navigation) Stop() error {
	n.mu.Lock()
	stop := n.stop
	n.stop = nil
	n.running = false
	n.mu.Unlock()

	if stop != nil {
		stop()
	}
	return nil
}

func (n *Navigation) handle(route string) {
	n.mu.Lock()
	if !n.running || route == n.last {
		n.mu.Unlock()
		return
	}
	from := n.last
	n.last = route
	n.mu.Unlock()

	if n.deps.Session != nil {
		n.deps.Session.UpdateRoute(route)
	}
	n.deps.emit(domain.EventNavigation, route, domain.Target{Type: domain.TargetRoute}, map[string]any{
		"from": from,
		"to":   route,
	})
}
