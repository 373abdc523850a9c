package adapters

import (
	"github.com/polisai/hawkeye-go/pkg/domain"
)

// Errors reports uncaught errors and unhandled promise rejections.
type Errors struct {
	deps Deps
	sub  subscription
}

// NewErrors builds an error adapter.
func NewErrors(deps Deps) *Errors {
	return &Errors{deps: deps}
}

// Name implements Adapter.
func (e *Errors) Name() string { return "error" }

// Start implements Adapter.
func (e *Errors) Start() error {
	return e.sub.start(e.deps.Source, map[string]Handler{
		KindError:              e.uncaught,
		KindUnhandledRejection: e.rejection,
	})
}

// Stop implements Adapter.
func (e *Errors) Stop() error {
	e.sub.stop()
	return nil
}

func (e *Errors) uncaught(ev DOMEvent) {
	message := ev.Message
	if message == "" {
		message = "Unknown error"
	}

	meta := map[string]any{"message": message}
	if ev.Filename != "" {
		meta["filename"] = ev.Filename
	}
	if ev.Line != 0 {
		meta["lineno"] = ev.Line
	}
	if ev.Column != 0 {
		meta["colno"] = ev.Column
	}

	e.deps.emit(domain.EventError, e.deps.route(), domain.Target{Type: domain.TargetError}, meta)
}

func (e *Errors) rejection(ev DOMEvent) {
	message := ev.Reason
	if message == "" {
		message = ev.Message
	}
	if message == "" {
		message = "Unhandled promise rejection"
	}

	e.deps.emit(domain.EventUnhandledRejection, e.deps.route(), domain.Target{Type: domain.TargetPromise}, map[string]any{
		"message": message,
	})
}
