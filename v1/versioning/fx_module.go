package versioning

import (
	"context"
	"fmt"
	"log"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/schemawatch/v1/logger"
	"github.com/Aleph-Alpha/schemawatch/v1/metrics"
	"github.com/Aleph-Alpha/schemawatch/v1/observability"
	"github.com/Aleph-Alpha/schemawatch/v1/postgres"
	"github.com/Aleph-Alpha/schemawatch/v1/redis"
)

// FXModule provides the configured ReadStore and the Registry.
//
// Optional inputs: *postgres.Postgres (postgres backend), *redis.RedisClient
// (distributed lock), ErrorReporter, SchemaIDResolver and SubjectLister.
var FXModule = fx.Module("versioning",
	fx.Provide(
		NewBackendWithDI,
		func(b *Backend) ReadStore { return b.Store },
		NewRegistryWithDI,
	),
	fx.Invoke(RegisterVersioningLifecycle),
)

// Backend is the selected store plus its lifecycle hooks.
type Backend struct {
	Store   ReadStore
	Kind    string
	migrate func(context.Context) error
	close   func() error
}

type BackendParams struct {
	fx.In

	Config   Config
	Postgres *postgres.Postgres     `optional:"true"`
	Observer observability.Observer `optional:"true"`
}

func NewBackendWithDI(params BackendParams) (*Backend, error) {
	return NewBackend(params.Config, params.Postgres, params.Observer)
}

// NewBackend builds the store named by cfg.Backend.
func NewBackend(cfg Config, pg *postgres.Postgres, observer observability.Observer) (*Backend, error) {
	cfg = cfg.withDefaults()

	switch cfg.Backend {
	case BackendMemory:
		log.Println("INFO: using in-memory schema version store")
		return &Backend{Store: NewMemoryStore(), Kind: BackendMemory}, nil

	case BackendPostgres:
		if pg == nil {
			return nil, fmt.Errorf("versioning backend %q requires a postgres connection", cfg.Backend)
		}
		store := NewGormStore(pg).WithObserver(observer)
		log.Println("INFO: using postgres schema version store")
		return &Backend{Store: store, Kind: BackendPostgres, migrate: store.Migrate}, nil

	case BackendEtcd:
		cli, err := NewEtcdClient(cfg.Etcd)
		if err != nil {
			return nil, err
		}
		log.Println("INFO: using etcd schema version store")
		return &Backend{
			Store: NewEtcdStore(cli, cfg.Etcd.Prefix).WithObserver(observer),
			Kind:  BackendEtcd,
			close: cli.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown versioning backend %q", cfg.Backend)
}

type RegistryParams struct {
	fx.In

	Config   Config
	Store    ReadStore
	Logger   *logger.Logger
	Metrics  *metrics.Metrics   `optional:"true"`
	Redis    *redis.RedisClient `optional:"true"`
	Reporter ErrorReporter      `optional:"true"`
	Resolver SchemaIDResolver   `optional:"true"`
	Lister   SubjectLister      `optional:"true"`
}

func NewRegistryWithDI(params RegistryParams) (*Registry, error) {
	r := NewRegistry(params.Store, params.Config, params.Logger)
	if params.Metrics != nil {
		r.WithMetrics(params.Metrics)
	}
	if params.Reporter != nil {
		r.WithReporter(params.Reporter)
	}
	if params.Resolver != nil {
		r.WithSchemaIDResolver(params.Resolver)
	}
	if params.Lister != nil {
		r.WithSubjectLister(params.Lister)
	}

	if params.Config.DistributedLock {
		if params.Redis == nil {
			return nil, fmt.Errorf("distributed lock enabled but no redis client is configured")
		}
		r.WithLocker(NewRedisLocker(params.Redis, "", params.Config.LockTTL))
	} else if params.Config.SharedStore() {
		log.Printf("WARN: %s version store without distributed_lock; run one replica or enable versioning.distributed_lock", params.Config.Backend)
	}
	return r, nil
}

// RegisterVersioningLifecycle migrates the schema on start and closes the
// backend connection on stop.
func RegisterVersioningLifecycle(lc fx.Lifecycle, b *Backend) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if b.migrate == nil {
				return nil
			}
			if err := b.migrate(ctx); err != nil {
				return fmt.Errorf("migrate %s store: %w", b.Kind, err)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if b.close == nil {
				return nil
			}
			return b.close()
		},
	})
}
