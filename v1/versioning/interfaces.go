package versioning

import (
	"context"
	"time"
)

// Logger is the logging surface used by this package.
//
//go:generate mockgen -destination=mock_interfaces.go -package=versioning . Logger,Metrics,ErrorReporter,SubjectLister
type Logger interface {
	DebugWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

// Metrics receives counters for drift checks and registrations.
type Metrics interface {
	RecordDriftCheck(result string)
	RecordVersionRegistered()
	RecordRegistrationFailure(reason string)
	RecordDecodeFailure()
}

// ErrorEvent describes a failure that was handled without being returned.
type ErrorEvent struct {
	Operation string
	Subject   string
	Err       error
	At        time.Time
}

// ErrorReporter is the error channel for failures the core absorbs.
type ErrorReporter interface {
	ReportError(ctx context.Context, event ErrorEvent)
}

// SubjectLister is an optional external registry that knows subjects.
type SubjectLister interface {
	ListSubjects(ctx context.Context) ([]string, error)
}

// SchemaIDResolver looks up the external registry id correlated with a subject.
type SchemaIDResolver interface {
	ResolveSchemaID(ctx context.Context, subject string) (int, error)
}

type nopLogger struct{}

func (nopLogger) DebugWithContext(context.Context, string, error, ...map[string]interface{}) {}
func (nopLogger) InfoWithContext(context.Context, string, error, ...map[string]interface{})  {}
func (nopLogger) WarnWithContext(context.Context, string, error, ...map[string]interface{})  {}
func (nopLogger) ErrorWithContext(context.Context, string, error, ...map[string]interface{}) {}

type nopMetrics struct{}

func (nopMetrics) RecordDriftCheck(string)          {}
func (nopMetrics) RecordVersionRegistered()         {}
func (nopMetrics) RecordRegistrationFailure(string) {}
func (nopMetrics) RecordDecodeFailure()             {}
