package tracer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func newTestTracer(t *testing.T) *Tracer {
	t.Helper()
	tr, err := NewClient(Config{ServiceName: "schemawatch", AppEnv: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Shutdown(context.Background()) })
	return tr
}

func TestStartSpan(t *testing.T) {
	tr := newTestTracer(t)

	parentCtx, parent := tr.StartSpan(context.Background(), "consume")
	defer parent.End()
	childCtx, child := tr.StartSpan(parentCtx, "process-record")
	defer child.End()

	assert.True(t, trace.SpanFromContext(childCtx).IsRecording())
	assert.Equal(t,
		trace.SpanFromContext(parentCtx).SpanContext().TraceID(),
		trace.SpanFromContext(childCtx).SpanContext().TraceID(),
	)
}

func TestCarrierRoundTrip(t *testing.T) {
	tr := newTestTracer(t)

	ctx, span := tr.StartSpan(context.Background(), "produce")
	defer span.End()

	carrier := tr.GetCarrier(ctx)
	require.Contains(t, carrier, "traceparent")

	restored := tr.SetCarrierOnContext(context.Background(), carrier)
	assert.Equal(t, span.SpanContext().TraceID(), trace.SpanContextFromContext(restored).TraceID())
}

func TestAttributesAndErrors(t *testing.T) {
	tr := newTestTracer(t)
	_, span := tr.StartSpan(context.Background(), "register")
	defer span.End()

	assert.NotPanics(t, func() {
		tr.SetAttributes(span, map[string]interface{}{
			"subject": "auth-service-schema",
			"version": 3,
			"long":    int64(4),
			"ratio":   0.5,
			"drift":   true,
			"fields":  []string{"a"},
		})
		tr.SetAttributes(span, nil)
		tr.RecordErrorOnSpan(span, errors.New("conflict"))
		tr.RecordErrorOnSpan(span, nil)
	})
}

func TestFXModule(t *testing.T) {
	var tr *Tracer
	app := fxtest.New(t,
		fx.Provide(func() Config { return Config{ServiceName: "schemawatch"} }),
		FXModule,
		fx.Populate(&tr),
	)
	app.RequireStart()
	require.NotNil(t, tr)
	app.RequireStop()
}
