package observability_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aleph-Alpha/schemawatch/v1/observability"
)

func TestNoOpObserver(t *testing.T) {
	observer := observability.NewNoOpObserver()

	assert.NotPanics(t, func() {
		observer.ObserveOperation(observability.OperationContext{Component: "versioning", Operation: "check_drift"})
	})
}

func TestMultiFansOut(t *testing.T) {
	a := &observability.Recorder{}
	b := &observability.Recorder{}
	multi := observability.Multi{a, nil, b}

	multi.ObserveOperation(observability.OperationContext{
		Component: "versioning",
		Operation: "append_version",
		Resource:  "auth-service-schema",
		Duration:  5 * time.Millisecond,
		Error:     errors.New("boom"),
	})

	require.Len(t, a.Operations(), 1)
	require.Len(t, b.Operations(), 1)
	assert.Equal(t, "auth-service-schema", b.Operations()[0].Resource)
	assert.EqualError(t, a.Operations()[0].Error, "boom")
}

func TestRecorderConcurrentUse(t *testing.T) {
	rec := &observability.Recorder{}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.ObserveOperation(observability.OperationContext{Component: "kafka", Operation: "produce"})
		}()
	}
	wg.Wait()

	assert.Len(t, rec.Find("kafka", "produce"), 50)
	assert.Empty(t, rec.Find("kafka", "consume"))
}
