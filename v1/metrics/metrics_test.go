package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aleph-Alpha/schemawatch/v1/observability"
)

func TestNewMetricsDefaults(t *testing.T) {
	m := NewMetrics(Config{ServiceName: "schemawatch"})
	assert.Equal(t, DefaultMetricsAddress, m.Server.Addr)
}

func TestSchemaCounters(t *testing.T) {
	m := NewMetrics(Config{ServiceName: "schemawatch"})

	m.RecordDriftCheck(ResultDrift)
	m.RecordDriftCheck(ResultDrift)
	m.RecordDriftCheck(ResultMatch)
	m.RecordVersionRegistered()
	m.RecordRegistrationFailure("conflict")
	m.RecordDecodeFailure()
	m.RecordProcessed("ok", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.driftChecks.WithLabelValues(ResultDrift)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.driftChecks.WithLabelValues(ResultMatch)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.versionsRegistered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.registrationFailures.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decodeFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recordsProcessed.WithLabelValues("ok")))
}

func TestObserveOperation(t *testing.T) {
	m := NewMetrics(Config{ServiceName: "schemawatch"})

	var observer observability.Observer = m
	observer.ObserveOperation(observability.OperationContext{
		Component: "versioning",
		Operation: "append_version",
		Duration:  3 * time.Millisecond,
	})
	observer.ObserveOperation(observability.OperationContext{
		Component: "versioning",
		Operation: "append_version",
		Error:     errors.New("conflict"),
	})

	assert.Equal(t, 2, testutil.CollectAndCount(m.operationDuration))
}

func TestHandlerExposesServiceLabel(t *testing.T) {
	m := NewMetrics(Config{ServiceName: "schemawatch", Namespace: "sw"})
	m.RecordDecodeFailure()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/metrics", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `sw_schema_decode_failures_total{service="schemawatch"} 1`)
}

func TestCreateCounter(t *testing.T) {
	m := NewMetrics(Config{ServiceName: "schemawatch"})
	c := m.CreateCounter("subjects_seen_total", "Subjects seen", []string{"subject"})
	c.WithLabelValues("auth-service-schema").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.WithLabelValues("auth-service-schema")))
}
