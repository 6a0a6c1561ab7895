// Package metrics exposes schemawatch's Prometheus metrics.
//
// NewMetrics creates a private registry whose collectors all carry a constant
// service label, registers the schema-engine metrics, and prepares an http.Server
// serving the registry on Config.Address. FXModule starts and stops that server.
//
// *Metrics also implements observability.Observer: every operation reported by the
// stores, the Kafka client or the object-storage sink lands in
// storage_operation_duration_seconds{component,operation,status}.
package metrics
