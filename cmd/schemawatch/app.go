package main

import (
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Aleph-Alpha/schemawatch/internal/config"
	"github.com/Aleph-Alpha/schemawatch/v1/api"
	"github.com/Aleph-Alpha/schemawatch/v1/kafka"
	"github.com/Aleph-Alpha/schemawatch/v1/logger"
	"github.com/Aleph-Alpha/schemawatch/v1/metrics"
	"github.com/Aleph-Alpha/schemawatch/v1/minio"
	"github.com/Aleph-Alpha/schemawatch/v1/pipeline"
	"github.com/Aleph-Alpha/schemawatch/v1/postgres"
	"github.com/Aleph-Alpha/schemawatch/v1/rabbit"
	"github.com/Aleph-Alpha/schemawatch/v1/redis"
	"github.com/Aleph-Alpha/schemawatch/v1/schema_registry"
	"github.com/Aleph-Alpha/schemawatch/v1/tracer"
	"github.com/Aleph-Alpha/schemawatch/v1/versioning"
)

const serviceName = "schemawatch"

// appOptions composes the service from cfg. Optional backends are only
// included when the configuration asks for them. Module order is lifecycle
// order: connections start before and stop after their users.
func appOptions(cfg *config.AppConfig) ([]fx.Option, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("%w: kafka.brokers is required to serve", config.ErrInvalid)
	}

	if cfg.Logger.ServiceName == "" {
		cfg.Logger.ServiceName = serviceName
	}
	if cfg.Metrics.ServiceName == "" {
		cfg.Metrics.ServiceName = serviceName
	}
	if cfg.Tracer.ServiceName == "" {
		cfg.Tracer.ServiceName = serviceName
	}

	opts := []fx.Option{
		fx.WithLogger(func(log *logger.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Zap}
		}),
		fx.Supply(
			cfg.Logger,
			cfg.Metrics,
			cfg.Tracer,
			cfg.Kafka,
			cfg.Versioning,
			cfg.Pipeline,
			cfg.API,
			cfg.Features(),
		),
		logger.FXModule,
		metrics.FXModule,
		tracer.FXModule,
	}

	if cfg.UsesPostgres() {
		opts = append(opts, fx.Supply(cfg.Postgres), postgres.FXModule)
	}
	if cfg.UsesRedis() {
		opts = append(opts, fx.Supply(cfg.Redis), redis.FXModule)
	}
	if cfg.UsesSchemaRegistry() {
		opts = append(opts,
			fx.Supply(cfg.SchemaRegistry),
			schema_registry.FXModule,
			fx.Provide(
				func(c *schema_registry.Client) versioning.SubjectLister { return c },
				func(c *schema_registry.Client) versioning.SchemaIDResolver { return c },
			),
		)
	}
	if cfg.UsesRabbit() {
		opts = append(opts, fx.Supply(cfg.Rabbit), rabbit.FXModule, pipeline.NotificationsModule)
	}
	if cfg.UsesMinio() {
		opts = append(opts, fx.Supply(cfg.Minio), minio.FXModule, pipeline.QuarantineModule)
	}

	return append(opts,
		kafka.FXModule,
		versioning.FXModule,
		pipeline.FXModule,
		api.FXModule,
	), nil
}
