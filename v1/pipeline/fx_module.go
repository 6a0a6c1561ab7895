package pipeline

import (
	"context"
	"fmt"
	"log"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/schemawatch/v1/kafka"
	"github.com/Aleph-Alpha/schemawatch/v1/logger"
	"github.com/Aleph-Alpha/schemawatch/v1/metrics"
	"github.com/Aleph-Alpha/schemawatch/v1/minio"
	"github.com/Aleph-Alpha/schemawatch/v1/observability"
	"github.com/Aleph-Alpha/schemawatch/v1/postgres"
	"github.com/Aleph-Alpha/schemawatch/v1/rabbit"
	"github.com/Aleph-Alpha/schemawatch/v1/tracer"
	"github.com/Aleph-Alpha/schemawatch/v1/versioning"
)

// FXModule provides the MetadataStore, the Processor and the Runner, and runs
// the Runner for the lifetime of the app. Include kafka.FXModule before it so
// the consumer is closed after the runner has drained.
var FXModule = fx.Module("pipeline",
	fx.Provide(
		NewMetadataBackendWithDI,
		func(b *MetadataBackend) MetadataStore { return b.Store },
		NewProcessorWithDI,
		NewRunnerWithDI,
	),
	fx.Invoke(RegisterPipelineLifecycle),
)

// NotificationsModule publishes drift events and absorbed core failures to
// RabbitMQ. It needs rabbit.FXModule.
var NotificationsModule = fx.Module("pipeline-notifications",
	fx.Provide(
		fx.Annotate(
			NewRabbitNotifierWithDI,
			fx.As(new(Notifier)),
			fx.As(new(versioning.ErrorReporter)),
		),
	),
)

// QuarantineModule stores undecodable records in MinIO. It needs minio.FXModule.
var QuarantineModule = fx.Module("pipeline-quarantine",
	fx.Provide(
		fx.Annotate(
			NewMinioQuarantineWithDI,
			fx.As(new(Quarantine)),
		),
	),
)

func NewRabbitNotifierWithDI(client *rabbit.RabbitClient, log *logger.Logger) *RabbitNotifier {
	return NewRabbitNotifier(client, log)
}

func NewMinioQuarantineWithDI(client *minio.MinioClient) *MinioQuarantine {
	return NewMinioQuarantine(client)
}

// MetadataBackend is the selected metadata store plus its migration.
type MetadataBackend struct {
	Store   MetadataStore
	Kind    string
	migrate func(context.Context) error
}

type MetadataParams struct {
	fx.In

	Config   Config
	Postgres *postgres.Postgres     `optional:"true"`
	Observer observability.Observer `optional:"true"`
}

func NewMetadataBackendWithDI(params MetadataParams) (*MetadataBackend, error) {
	return NewMetadataBackend(params.Config, params.Postgres, params.Observer)
}

// memoryMetadataCapacity bounds the in-memory store of a long-running process.
const memoryMetadataCapacity = 10000

func NewMetadataBackend(cfg Config, pg *postgres.Postgres, observer observability.Observer) (*MetadataBackend, error) {
	cfg = cfg.withDefaults()

	switch cfg.MetadataBackend {
	case MetadataMemory:
		log.Println("INFO: using in-memory message metadata store")
		return &MetadataBackend{Store: NewMemoryMetadataStore(memoryMetadataCapacity), Kind: MetadataMemory}, nil
	case MetadataPostgres:
		if pg == nil {
			return nil, fmt.Errorf("metadata backend %q requires a postgres connection", cfg.MetadataBackend)
		}
		store := NewGormMetadataStore(pg).WithObserver(observer)
		log.Println("INFO: using postgres message metadata store")
		return &MetadataBackend{Store: store, Kind: MetadataPostgres, migrate: store.Migrate}, nil
	}
	return nil, fmt.Errorf("unknown metadata backend %q", cfg.MetadataBackend)
}

type ProcessorParams struct {
	fx.In

	Config     Config
	Registry   *versioning.Registry
	Store      MetadataStore
	Kafka      *kafka.KafkaClient
	Logger     *logger.Logger
	Metrics    *metrics.Metrics `optional:"true"`
	Tracer     *tracer.Tracer   `optional:"true"`
	Quarantine Quarantine       `optional:"true"`
	Notifier   Notifier         `optional:"true"`
}

func NewProcessorWithDI(params ProcessorParams) *Processor {
	p := NewProcessor(params.Config, params.Registry, params.Store, params.Kafka, params.Logger).
		WithQuarantine(params.Quarantine).
		WithNotifier(params.Notifier)
	if params.Metrics != nil {
		p.WithMetrics(params.Metrics)
	}
	if params.Tracer != nil {
		p.WithTracer(params.Tracer)
	}
	return p
}

func NewRunnerWithDI(client *kafka.KafkaClient, processor *Processor, log *logger.Logger) *Runner {
	return NewRunner(client, processor, log)
}

type PipelineLifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Backend   *MetadataBackend
	Runner    *Runner
	Logger    *logger.Logger
}

// RegisterPipelineLifecycle migrates the metadata table, then consumes until
// the app stops.
func RegisterPipelineLifecycle(params PipelineLifecycleParams) {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if params.Backend.migrate != nil {
				if err := params.Backend.migrate(ctx); err != nil {
					cancel()
					return fmt.Errorf("migrate %s metadata store: %w", params.Backend.Kind, err)
				}
			}
			go func() {
				defer close(done)
				params.Logger.Info("pipeline started", nil)
				if err := params.Runner.Run(runCtx); err != nil {
					params.Logger.Error("pipeline stopped", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
				params.Logger.Info("pipeline drained", nil)
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
