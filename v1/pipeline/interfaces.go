package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Logger is the logging surface used by this package.
//
//go:generate mockgen -destination=mock_logger.go -package=pipeline . Logger
type Logger interface {
	DebugWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

// Metrics is implemented by *metrics.Metrics.
type Metrics interface {
	RecordProcessed(status string, d time.Duration)
}

// Tracer is implemented by *tracer.Tracer.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, trace.Span)
	RecordErrorOnSpan(span trace.Span, err error)
	SetAttributes(span trace.Span, attrs map[string]interface{})
	GetCarrier(ctx context.Context) map[string]string
	SetCarrierOnContext(ctx context.Context, carrier map[string]string) context.Context
}

// Publisher forwards normalized payloads. *kafka.KafkaClient implements it.
type Publisher interface {
	Publish(ctx context.Context, key string, body []byte, headers map[string]string) error
}

type nopLogger struct{}

func (nopLogger) DebugWithContext(context.Context, string, error, ...map[string]interface{}) {}
func (nopLogger) InfoWithContext(context.Context, string, error, ...map[string]interface{})  {}
func (nopLogger) WarnWithContext(context.Context, string, error, ...map[string]interface{})  {}
func (nopLogger) ErrorWithContext(context.Context, string, error, ...map[string]interface{}) {}

type nopMetrics struct{}

func (nopMetrics) RecordProcessed(string, time.Duration) {}
