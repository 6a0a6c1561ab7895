package kafka

import (
	"time"

	"github.com/Aleph-Alpha/schemawatch/v1/observability"
)

// resource is the topic, subResource the partition or message key.
func (k *KafkaClient) observeOperation(operation, resource, subResource string, duration time.Duration, err error, size int64) {
	if k.observer == nil {
		return
	}
	k.observer.ObserveOperation(observability.OperationContext{
		Component:   "kafka",
		Operation:   operation,
		Resource:    resource,
		SubResource: subResource,
		Duration:    duration,
		Error:       err,
		Size:        size,
	})
}
