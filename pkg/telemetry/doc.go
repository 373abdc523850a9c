// Package telemetry wires OpenTelemetry tracing and meters for the collector.
//
// It centralises trace provider setup, exposes the tracer used around
// delivery attempts, and records delivery counters and latency on the global
// meter provider so operators can correlate batches with ingestion behaviour.
package telemetry
