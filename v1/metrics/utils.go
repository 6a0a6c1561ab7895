package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Aleph-Alpha/schemawatch/v1/observability"
)

func (m *Metrics) RecordDriftCheck(result string) {
	m.driftChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordVersionRegistered() {
	m.versionsRegistered.Inc()
}

func (m *Metrics) RecordRegistrationFailure(reason string) {
	m.registrationFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordDecodeFailure() {
	m.decodeFailures.Inc()
}

// RecordProcessed counts a pipeline record and its processing time.
func (m *Metrics) RecordProcessed(status string, d time.Duration) {
	m.recordsProcessed.WithLabelValues(status).Inc()
	m.recordDuration.Observe(d.Seconds())
}

// ObserveOperation implements observability.Observer.
func (m *Metrics) ObserveOperation(op observability.OperationContext) {
	status := "ok"
	if op.Error != nil {
		status = "error"
	}
	m.operationDuration.WithLabelValues(op.Component, op.Operation, status).Observe(op.Duration.Seconds())
}

// CreateCounter registers an additional counter vector with the service label.
func (m *Metrics) CreateCounter(name, help string, labels []string) *prometheus.CounterVec {
	c := m.counterVec(name, help, labels)
	m.registerer.MustRegister(c)
	return c
}

// CreateHistogram registers an additional histogram vector with the service label.
func (m *Metrics) CreateHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	h := m.histogramVec(name, help, labels, buckets)
	m.registerer.MustRegister(h)
	return h
}

func (m *Metrics) counterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func (m *Metrics) histogramVec(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}
