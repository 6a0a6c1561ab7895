package logger

import (
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type zapLevel = zapcore.Level

const (
	levelDebug = zapcore.DebugLevel
	levelInfo  = zapcore.InfoLevel
	levelWarn  = zapcore.WarnLevel
	levelError = zapcore.ErrorLevel
)

// Logger is the process-wide structured logger.
type Logger struct {
	// Zap is exposed for callers that need zap-specific features.
	Zap *zap.Logger

	tracingEnabled bool
}

// NewLoggerClient builds a JSON logger writing to stderr with ISO8601 "timestamp",
// capital levels, caller information and the pid/service initial fields.
// A logger that cannot be built is fatal.
func NewLoggerClient(cfg Config) *Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderCfg.EncodeCaller = zapcore.ShortCallerEncoder
	encoderCfg.EncodeDuration = zapcore.MillisDurationEncoder

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(cfg.zapLevel()),
		Encoding:         "json",
		EncoderConfig:    encoderCfg,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		InitialFields: map[string]interface{}{
			"pid":     os.Getpid(),
			"service": cfg.ServiceName,
		},
	}

	zl, err := config.Build(zap.AddCaller(), zap.AddCallerSkip(1))
	if err != nil {
		log.Fatal(err)
	}

	return &Logger{
		Zap:            zl,
		tracingEnabled: cfg.EnableTracing,
	}
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return &Logger{Zap: zap.NewNop()}
}

// FromZap wraps an existing zap logger.
func FromZap(zl *zap.Logger, tracingEnabled bool) *Logger {
	return &Logger{Zap: zl, tracingEnabled: tracingEnabled}
}
