package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func (l *Logger) fields(err error, fields ...map[string]interface{}) []zap.Field {
	var out []zap.Field
	if err != nil {
		out = append(out, zap.Error(err))
	}
	for _, m := range fields {
		for k, v := range m {
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}

// traceFields returns trace_id and span_id of the recording span in ctx, if any.
func (l *Logger) traceFields(ctx context.Context) []zap.Field {
	if !l.tracingEnabled || ctx == nil {
		return nil
	}

	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}

	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}

func (l *Logger) Debug(msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Debug(msg, l.fields(err, fields...)...)
}

func (l *Logger) Info(msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Info(msg, l.fields(err, fields...)...)
}

func (l *Logger) Warn(msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Warn(msg, l.fields(err, fields...)...)
}

func (l *Logger) Error(msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Error(msg, l.fields(err, fields...)...)
}

// Fatal logs and exits the process.
func (l *Logger) Fatal(msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Fatal(msg, l.fields(err, fields...)...)
}

func (l *Logger) DebugWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Debug(msg, append(l.fields(err, fields...), l.traceFields(ctx)...)...)
}

func (l *Logger) InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Info(msg, append(l.fields(err, fields...), l.traceFields(ctx)...)...)
}

func (l *Logger) WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Warn(msg, append(l.fields(err, fields...), l.traceFields(ctx)...)...)
}

func (l *Logger) ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Error(msg, append(l.fields(err, fields...), l.traceFields(ctx)...)...)
}

func (l *Logger) FatalWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Fatal(msg, append(l.fields(err, fields...), l.traceFields(ctx)...)...)
}
