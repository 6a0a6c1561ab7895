// Package tracer configures OpenTelemetry tracing for schemawatch.
//
// The pipeline opens one span per consumed record and propagates the trace context
// downstream through Kafka headers:
//
//	ctx = tr.SetCarrierOnContext(ctx, headersFromMessage)
//	ctx, span := tr.StartSpan(ctx, "process-record")
//	defer span.End()
//	...
//	client.Publish(ctx, key, payload, tr.GetCarrier(ctx))
//
// With EnableExport set, spans are batched to an OTLP/HTTP collector; the exporter reads
// the standard OTEL_EXPORTER_OTLP_* variables unless Endpoint is given.
package tracer
