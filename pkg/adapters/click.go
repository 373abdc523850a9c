package adapters

import (
	"strings"

	"github.com/polisai/hawkeye-go/pkg/domain"
)

// Click emits click signals for non-form-control elements. INPUT and BUTTON
// targets are left to the input adapter.
type Click struct {
	deps Deps
	sub  subscription
}

// NewClick builds a click adapter.
func NewClick(deps Deps) *Click {
	return &Click{deps: deps}
}

// Name implements Adapter.
func (c *Click) Name() string { return "click" }

// Start implements Adapter.
func (c *Click) Start() error {
	return c.sub.start(c.deps.Source, map[string]Handler{KindClick: c.handle})
}

// Stop implements Adapter.
func (c *Click) Stop() error {
	c.sub.stop()
	return nil
}

func (c *Click) handle(ev DOMEvent) {
	if ev.Target.TagName == "" || isTag(ev.Target, "INPUT", "BUTTON") {
		return
	}

	c.deps.emit(domain.EventClick, c.deps.route(), domain.Target{
		Type:     domain.TargetElement,
		ID:       ev.Target.ID,
		Selector: Selector(ev.Target),
		TagName:  strings.ToLower(ev.Target.TagName),
	}, map[string]any{
		"clientX": ev.ClientX,
		"clientY": ev.ClientY,
	})
}

// Selector returns "#id", else ".firstClass", else the lowercased tag name.
func Selector(el ElementInfo) string {
	if el.ID != "" {
		return "#" + el.ID
	}
	if classes := strings.Fields(el.ClassName); len(classes) > 0 {
		return "." + classes[0]
	}
	return strings.ToLower(el.TagName)
}
