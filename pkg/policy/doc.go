// Package policy decides which signals are admitted into the delivery queue.
//
// Filters run before enrichment. A filter may rewrite a signal's metadata or
// reject the signal outright; rejected signals never consume an idempotency
// counter value. The package ships a metadata scrubber for personally
// identifying keys and values and an Open Policy Agent filter that evaluates a
// Rego admission decision.
package policy
