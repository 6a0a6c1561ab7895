package rabbit

import (
	"time"

	"github.com/Aleph-Alpha/schemawatch/v1/observability"
)

func (rb *RabbitClient) observeOperation(operation, resource, subResource string, duration time.Duration, err error, size int64) {
	if rb.observer == nil {
		return
	}
	rb.observer.ObserveOperation(observability.OperationContext{
		Component:   "rabbit",
		Operation:   operation,
		Resource:    resource,
		SubResource: subResource,
		Duration:    duration,
		Error:       err,
		Size:        size,
	})
}
