// Package session holds the per-initialization session identity: a random
// version-4 UUID, the start time and the route the user is currently on.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultRoute is used when the host cannot report a route.
const DefaultRoute = "/"

// Session identifies one collector lifetime. ID and StartTime never change;
// the current route is updated by the navigation adapter only.
type Session struct {
	id        string
	startTime time.Time

	mu    sync.RWMutex
	route string
}

// New creates a session positioned on route.
func New(route string) *Session {
	if route == "" {
		route = DefaultRoute
	}
	return &Session{
		id:        uuid.NewString(),
		startTime: time.Now(),
		route:     route,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// StartTime returns when the session was created. The value carries a
// monotonic clock reading.
func (s *Session) StartTime() time.Time {
	return s.startTime
}

// CurrentRoute returns the most recently recorded route.
func (s *Session) CurrentRoute() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.route
}

// UpdateRoute overwrites the current route. No validation is applied and no
// signal is emitted.
func (s *Session) UpdateRoute(route string) {
	s.mu.Lock()
	s.route = route
	s.mu.Unlock()
}
