package adapters

import (
	"sync"
)

// Event kinds understood by the built-in adapters.
const (
	KindClick              = "click"
	KindScroll             = "scroll"
	KindFocus              = "focus"
	KindBlur               = "blur"
	KindSubmit             = "submit"
	KindError              = "error"
	KindUnhandledRejection = "unhandledrejection"
	KindNavigation         = "navigation"
)

// ElementInfo describes the element an event was dispatched on.
type ElementInfo struct {
	TagName   string `json:"tagName,omitempty"`
	ID        string `json:"id,omitempty"`
	ClassName string `json:"className,omitempty"`
	// Type is the input type attribute for INPUT elements.
	Type string `json:"type,omitempty"`
}

// DOMEvent is a host UI event. Only the fields relevant to Kind are set.
type DOMEvent struct {
	Kind    string      `json:"kind"`
	Target  ElementInfo `json:"target"`
	ClientX float64     `json:"clientX,omitempty"`
	ClientY float64     `json:"clientY,omitempty"`
	ScrollY float64     `json:"scrollY,omitempty"`

	Message  string `json:"message,omitempty"`
	Filename string `json:"filename,omitempty"`
	Line     int    `json:"lineno,omitempty"`
	Column   int    `json:"colno,omitempty"`
	Reason   string `json:"reason,omitempty"`

	FieldCount  int    `json:"fieldCount,omitempty"`
	InputType   string `json:"inputType,omitempty"`
	ValueLength int    `json:"valueLength,omitempty"`

	Route string `json:"route,omitempty"`
}

// Handler consumes events of one kind.
type Handler func(DOMEvent)

// EventSource delivers host UI events to subscribers.
type EventSource interface {
	Subscribe(kind string, h Handler) (unsubscribe func())
}

// Bus is an in-process EventSource. Publish dispatches synchronously on the
// caller's goroutine.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string]map[uint64]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string]map[uint64]Handler)}
}

// Subscribe registers h for kind. The returned function is idempotent.
func (b *Bus) Subscribe(kind string, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.handlers[kind] == nil {
		b.handlers[kind] = make(map[uint64]Handler)
	}
	b.handlers[kind][id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers[kind], id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers ev to every handler subscribed to ev.Kind.
func (b *Bus) Publish(ev DOMEvent) {
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.handlers[ev.Kind]))
	for _, h := range b.handlers[ev.Kind] {
		hs = append(hs, h)
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(ev)
	}
}

// Subscribers reports the number of handlers registered for kind.
func (b *Bus) Subscribers(kind string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[kind])
}
