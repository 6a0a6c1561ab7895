// Package logger wraps zap with the small structured-logging API used across schemawatch.
//
// Every call takes a message, an optional error and optional field maps:
//
//	log := logger.NewLoggerClient(logger.Config{Level: logger.Info, ServiceName: "schemawatch"})
//	log.Info("schema drift detected", nil, map[string]interface{}{
//	    "subject": "auth-service-schema",
//	    "latest_version": 3,
//	})
//
// The *WithContext variants attach trace_id and span_id from the active OpenTelemetry
// span when Config.EnableTracing is set, so log lines can be joined with the per-record
// spans created by the pipeline.
//
// Other packages do not import this one directly for their logging needs; each declares
// a narrow Logger interface that *Logger satisfies.
package logger
