package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/Aleph-Alpha/schemawatch"

func (t *Tracer) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.provider.Tracer(instrumentationName).Start(ctx, name)
}

// RecordErrorOnSpan records err and marks the span failed.
func (t *Tracer) RecordErrorOnSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetAttributes converts a loose map into typed span attributes. Unknown value
// types are stringified.
func (t *Tracer) SetAttributes(span trace.Span, attrs map[string]interface{}) {
	if len(attrs) == 0 {
		return
	}

	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			kvs = append(kvs, attribute.String(k, val))
		case int:
			kvs = append(kvs, attribute.Int(k, val))
		case int64:
			kvs = append(kvs, attribute.Int64(k, val))
		case float64:
			kvs = append(kvs, attribute.Float64(k, val))
		case bool:
			kvs = append(kvs, attribute.Bool(k, val))
		default:
			kvs = append(kvs, attribute.String(k, fmt.Sprint(val)))
		}
	}
	span.SetAttributes(kvs...)
}

// GetCarrier serializes the trace context of ctx into string headers.
func (t *Tracer) GetCarrier(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	t.propagator.Inject(ctx, carrier)
	return carrier
}

// SetCarrierOnContext restores a trace context previously produced by GetCarrier.
func (t *Tracer) SetCarrierOnContext(ctx context.Context, carrier map[string]string) context.Context {
	return t.propagator.Extract(ctx, propagation.MapCarrier(carrier))
}
