package postgres

import (
	"context"
	"sync"

	"go.uber.org/fx"
)

var FXModule = fx.Module("postgres",
	fx.Provide(
		NewPostgresClientWithDI,
	),
	fx.Invoke(RegisterPostgresLifecycle),
)

type PostgresParams struct {
	fx.In

	Config Config
}

func NewPostgresClientWithDI(params PostgresParams) (*Postgres, error) {
	return NewPostgres(params.Config)
}

type PostgresLifeCycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Postgres  *Postgres
}

// RegisterPostgresLifecycle runs the connection monitor while the app is up and
// closes the pool on stop.
func RegisterPostgresLifecycle(params PostgresLifeCycleParams) {
	var wg sync.WaitGroup
	runCtx, cancel := context.WithCancel(context.Background())

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			wg.Add(1)
			go func() {
				defer wg.Done()
				params.Postgres.Run(runCtx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			err := params.Postgres.Close()
			wg.Wait()
			return err
		},
	})
}
