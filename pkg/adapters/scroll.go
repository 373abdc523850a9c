package adapters

import (
	"math"
	"sync"
	"time"

	"github.com/polisai/hawkeye-go/pkg/domain"
)

// DefaultScrollWindow is the scroll throttle window.
const DefaultScrollWindow = 500 * time.Millisecond

// scrollThreshold is the minimum absolute delta, in pixels, worth reporting.
const scrollThreshold = 100

// Scroll reports significant scroll movement at most once per window. The
// position is evaluated at the end of each window against the last reported
// position.
type Scroll struct {
	deps   Deps
	window time.Duration
	sub    subscription

	mu      sync.Mutex
	running bool
	lastY   float64
	latestY float64
	timer   *time.Timer
}

// NewScroll builds a scroll adapter.
func NewScroll(deps Deps) *Scroll {
	window := deps.ScrollWindow
	if window <= 0 {
		window = DefaultScrollWindow
	}
	return &Scroll{deps: deps, window: window}
}

// Name implements Adapter.
func (s *Scroll) Name() string { return "scroll" }

// Start implements Adapter.
func (s *Scroll) Start() error {
	if err := s.sub.start(s.deps.Source, map[string]Handler{KindScroll: s.handle}); err != nil {
		return err
	}
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	return nil
}

// Stop implements Adapter. A pending throttle window is cancelled.
func (s *Scroll) Stop() error {
	s.sub.stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	return nil
}

func (s *Scroll) handle(ev DOMEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.latestY = ev.ScrollY
	if s.timer != nil {
		return
	}
	s.timer = time.AfterFunc(s.window, s.evaluate)
}

func (s *Scroll) evaluate() {
	s.mu.Lock()
	if !s.running || s.timer == nil {
		s.mu.Unlock()
		return
	}
	s.timer = nil

	current := s.latestY
	delta := math.Abs(current - s.lastY)
	if delta <= scrollThreshold {
		s.mu.Unlock()
		return
	}
	s.lastY = current
	s.mu.Unlock()

	s.deps.emit(domain.EventScroll, s.deps.route(), domain.Target{Type: domain.TargetWindow}, map[string]any{
		"scrollY":     current,
		"scrollDelta": delta,
	})
}
