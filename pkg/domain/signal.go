package domain

import "time"

// SDKVersion is reported in every ingestion request.
const SDKVersion = "1.0.0"

// TimestampLayout renders signal timestamps with millisecond precision in UTC.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Target types populated by the signal adapters.
const (
	TargetElement = "element"
	TargetInput   = "input"
	TargetForm    = "form"
	TargetWindow  = "window"
	TargetRoute   = "route"
	TargetError   = "error"
	TargetPromise = "promise"
	TargetCustom  = "custom"
	TargetUnknown = "unknown"
)

// Event types emitted by the built-in adapters.
const (
	EventClick              = "click"
	EventScroll             = "scroll"
	EventInputFocus         = "input_focus"
	EventInputBlur          = "input_blur"
	EventFormSubmit         = "form_submit"
	EventError              = "error"
	EventUnhandledRejection = "unhandled_rejection"
	EventNavigation         = "navigation"
)

// Target describes the element or source a signal was observed on.
// Adapters only populate the fields relevant to their event kind.
type Target struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	Selector string `json:"selector,omitempty"`
	TagName  string `json:"tagName,omitempty"`
}

// Signal is one captured interaction or failure record.
//
// Environment and IdempotencyKey are empty on raw signals and assigned by the
// queue at enrichment time. Once enriched a Signal is treated as immutable.
type Signal struct {
	EventType      string         `json:"eventType"`
	Timestamp      string         `json:"timestamp"`
	SessionID      string         `json:"sessionId"`
	Route          string         `json:"route"`
	Target         Target         `json:"target"`
	Metadata       map[string]any `json:"metadata"`
	Environment    string         `json:"environment,omitempty"`
	IdempotencyKey string         `json:"idempotencyKey,omitempty"`
}

// FormatTimestamp renders t the way signal timestamps are transmitted.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// IngestRequest is the body of one delivery call. It is built fresh per
// flush and never mutated afterwards.
type IngestRequest struct {
	APIKey     string   `json:"api_key"`
	SDKVersion string   `json:"sdk_version"`
	AppID      string   `json:"app_id,omitempty"`
	Events     []Signal `json:"events"`
}

// IngestResponse is the acknowledgment returned by the ingestion endpoint.
type IngestResponse struct {
	Success   bool   `json:"success"`
	Processed int    `json:"processed,omitempty"`
	Message   string `json:"message,omitempty"`
}
