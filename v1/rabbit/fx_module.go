package rabbit

import (
	"context"
	"sync"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/schemawatch/v1/observability"
)

var FXModule = fx.Module("rabbit",
	fx.Provide(NewClientWithDI),
	fx.Invoke(RegisterRabbitLifecycle),
)

type RabbitParams struct {
	fx.In

	Config   Config
	Observer observability.Observer `optional:"true"`
}

func NewClientWithDI(params RabbitParams) (*RabbitClient, error) {
	client, err := NewClient(params.Config)
	if err != nil {
		return nil, err
	}
	return client.WithObserver(params.Observer), nil
}

type RabbitLifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Client    *RabbitClient
}

// RegisterRabbitLifecycle keeps the connection alive while the app runs.
func RegisterRabbitLifecycle(params RabbitLifecycleParams) {
	var wg sync.WaitGroup
	runCtx, cancel := context.WithCancel(context.Background())

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			wg.Add(1)
			go func() {
				defer wg.Done()
				params.Client.Run(runCtx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			err := params.Client.Close()
			wg.Wait()
			return err
		},
	})
}
