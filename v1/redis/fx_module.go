package redis

import (
	"context"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/schemawatch/v1/observability"
)

var FXModule = fx.Module("redis",
	fx.Provide(NewClientWithDI),
	fx.Invoke(RegisterRedisLifecycle),
)

type RedisParams struct {
	fx.In

	Config   Config
	Observer observability.Observer `optional:"true"`
}

func NewClientWithDI(params RedisParams) (*RedisClient, error) {
	client, err := NewClient(params.Config)
	if err != nil {
		return nil, err
	}
	return client.WithObserver(params.Observer), nil
}

type RedisLifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Client    *RedisClient
}

// RegisterRedisLifecycle pings on start and closes the pool on stop.
func RegisterRedisLifecycle(params RedisLifecycleParams) {
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return params.Client.Ping(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return params.Client.Close()
		},
	})
}
