// Package domain defines the core types shared by every HawkEye component.
//
// This package contains pure data definitions with ZERO external dependencies
// outside the Go standard library:
//
// - Signal and Target describe one captured interaction or failure record
// - IngestRequest and IngestResponse form the ingestion wire contract
// - ConfigurationError, TransportError and AdapterStopError make up the error taxonomy
//
// Other packages (queue, transport, observer, adapters) depend on these types.
// The dependency direction is always:
//
//	Infrastructure → Domain (CORRECT)
//	Domain → Infrastructure (FORBIDDEN)
package domain
