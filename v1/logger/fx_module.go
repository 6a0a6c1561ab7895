package logger

import (
	"context"

	"go.uber.org/fx"
)

// FXModule provides *Logger from a logger.Config and flushes it on shutdown.
var FXModule = fx.Module("logger",
	fx.Provide(
		NewLoggerClient,
	),
	fx.Invoke(RegisterLoggerLifecycle),
)

// RegisterLoggerLifecycle syncs buffered entries when the application stops.
func RegisterLoggerLifecycle(lc fx.Lifecycle, client *Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			// stderr sync returns EINVAL on some platforms
			_ = client.Zap.Sync()
			return nil
		},
	})
}
