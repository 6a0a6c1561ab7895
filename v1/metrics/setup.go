package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drift check results used as the "result" label.
const (
	ResultNoPrior = "no_prior"
	ResultMatch   = "match"
	ResultDrift   = "drift"
	ResultError   = "error"
)

// Metrics holds the registry, the HTTP server exposing it and the schema-engine collectors.
type Metrics struct {
	Server   *http.Server
	Registry *prometheus.Registry

	namespace  string
	registerer prometheus.Registerer

	driftChecks          *prometheus.CounterVec
	versionsRegistered   prometheus.Counter
	registrationFailures *prometheus.CounterVec
	decodeFailures       prometheus.Counter
	recordsProcessed     *prometheus.CounterVec
	recordDuration       prometheus.Histogram
	operationDuration    *prometheus.HistogramVec
}

// NewMetrics builds the registry and registers every schemawatch collector.
func NewMetrics(cfg Config) *Metrics {
	if cfg.Address == "" {
		cfg.Address = DefaultMetricsAddress
	}

	registry := prometheus.NewRegistry()
	wrapped := prometheus.WrapRegistererWith(prometheus.Labels{"service": cfg.ServiceName}, registry)

	m := &Metrics{
		Registry:   registry,
		namespace:  cfg.Namespace,
		registerer: wrapped,
	}

	m.driftChecks = m.counterVec("schema_drift_checks_total", "Drift checks by result", []string{"result"})
	m.versionsRegistered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "schema_versions_registered_total",
		Help:      "Schema versions successfully appended",
	})
	m.registrationFailures = m.counterVec("schema_registration_failures_total", "Failed version registrations by reason", []string{"reason"})
	m.decodeFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "schema_decode_failures_total",
		Help:      "Records that could not be decoded as a JSON object",
	})
	m.recordsProcessed = m.counterVec("records_processed_total", "Pipeline records by outcome", []string{"status"})
	m.recordDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "record_processing_duration_seconds",
		Help:      "End-to-end processing time of a single record",
		Buckets:   prometheus.DefBuckets,
	})
	m.operationDuration = m.histogramVec("storage_operation_duration_seconds", "Duration of store, transport and sink operations",
		[]string{"component", "operation", "status"}, prometheus.DefBuckets)

	wrapped.MustRegister(
		m.driftChecks,
		m.versionsRegistered,
		m.registrationFailures,
		m.decodeFailures,
		m.recordsProcessed,
		m.recordDuration,
		m.operationDuration,
	)

	if cfg.EnableDefaultCollectors {
		wrapped.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewBuildInfoCollector(),
		)
	}

	m.Server = &http.Server{
		Addr:    cfg.Address,
		Handler: m.Handler(),
	}
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	return mux
}
