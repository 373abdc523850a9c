package adapters

import (
	"strings"

	"github.com/polisai/hawkeye-go/pkg/domain"
)

// Input reports focus and blur on text controls and form submissions.
// Field values are never captured, only their length.
type Input struct {
	deps Deps
	sub  subscription
}

// NewInput builds an input adapter.
func NewInput(deps Deps) *Input {
	return &Input{deps: deps}
}

// Name implements Adapter.
func (i *Input) Name() string { return "input" }

// Start implements Adapter.
func (i *Input) Start() error {
	return i.sub.start(i.deps.Source, map[string]Handler{
		KindFocus:  i.focus,
		KindBlur:   i.blur,
		KindSubmit: i.submit,
	})
}

// Stop implements Adapter.
func (i *Input) Stop() error {
	i.sub.stop()
	return nil
}

func (i *Input) focus(ev DOMEvent) {
	if !isTag(ev.Target, "INPUT", "TEXTAREA") {
		return
	}
	i.deps.emit(domain.EventInputFocus, i.deps.route(), inputTarget(ev.Target), map[string]any{
		"inputType": inputType(ev),
	})
}

func (i *Input) blur(ev DOMEvent) {
	if !isTag(ev.Target, "INPUT", "TEXTAREA") {
		return
	}
	i.deps.emit(domain.EventInputBlur, i.deps.route(), inputTarget(ev.Target), map[string]any{
		"inputType":   inputType(ev),
		"valueLength": ev.ValueLength,
	})
}

func (i *Input) submit(ev DOMEvent) {
	if !isTag(ev.Target, "FORM") {
		return
	}
	i.deps.emit(domain.EventFormSubmit, i.deps.route(), domain.Target{
		Type: domain.TargetForm,
		ID:   ev.Target.ID,
	}, map[string]any{
		"fieldCount": ev.FieldCount,
	})
}

func inputTarget(el ElementInfo) domain.Target {
	return domain.Target{
		Type:    domain.TargetInput,
		ID:      el.ID,
		TagName: strings.ToLower(el.TagName),
	}
}

func inputType(ev DOMEvent) string {
	switch {
	case ev.InputType != "":
		return ev.InputType
	case ev.Target.Type != "":
		return ev.Target.Type
	default:
		return "text"
	}
}
