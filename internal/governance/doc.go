// Package governance protects the ingestion endpoint from runaway clients.
//
// Limits are tracked per API key with a token bucket. Throttled requests are
// answered as if they succeeded so a collector never learns it was limited
// and never retries into the limit.
package governance
