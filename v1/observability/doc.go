// Package observability defines the hook through which schemawatch packages report
// completed operations (store reads and appends, drift checks, Kafka produce/consume,
// object uploads) without depending on a concrete metrics or tracing backend.
//
// Packages accept an optional Observer; nil means "do not report". The metrics
// package provides the Prometheus-backed implementation.
package observability
