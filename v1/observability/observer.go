package observability

import (
	"sync"
	"time"
)

// Observer receives a notification for every completed operation.
type Observer interface {
	ObserveOperation(ctx OperationContext)
}

// OperationContext describes one completed operation.
type OperationContext struct {
	// Component is the reporting package, e.g. "versioning", "postgres", "kafka".
	Component string

	// Operation is the action performed, e.g. "list_versions", "append_version",
	// "check_drift", "produce".
	Operation string

	// Resource is the primary target: a subject, table, topic or bucket.
	Resource string

	// SubResource narrows Resource: a version number, partition or object key.
	SubResource string

	Duration time.Duration

	// Error is nil on success.
	Error error

	// Size is a row count or a byte count depending on the operation.
	Size int64

	Metadata map[string]interface{}
}

// NoOpObserver discards every notification.
type NoOpObserver struct{}

func (n *NoOpObserver) ObserveOperation(ctx OperationContext) {}

// NewNoOpObserver returns an Observer that does nothing.
func NewNoOpObserver() Observer {
	return &NoOpObserver{}
}

// Multi fans a notification out to several observers. Nil entries are skipped.
type Multi []Observer

func (m Multi) ObserveOperation(ctx OperationContext) {
	for _, o := range m {
		if o != nil {
			o.ObserveOperation(ctx)
		}
	}
}

// Recorder keeps every notification in memory. It is meant for tests.
type Recorder struct {
	mu         sync.Mutex
	operations []OperationContext
}

func (r *Recorder) ObserveOperation(ctx OperationContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations = append(r.operations, ctx)
}

// Operations returns a copy of the recorded notifications.
func (r *Recorder) Operations() []OperationContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]OperationContext{}, r.operations...)
}

// Find returns the recorded notifications for component and operation.
func (r *Recorder) Find(component, operation string) []OperationContext {
	var out []OperationContext
	for _, op := range r.Operations() {
		if op.Component == component && op.Operation == operation {
			out = append(out, op)
		}
	}
	return out
}
