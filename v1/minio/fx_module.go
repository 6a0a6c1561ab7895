package minio

import (
	"context"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/schemawatch/v1/logger"
	"github.com/Aleph-Alpha/schemawatch/v1/observability"
)

var FXModule = fx.Module("minio",
	fx.Provide(NewClientWithDI),
	fx.Invoke(RegisterLifecycle),
)

type MinioParams struct {
	fx.In

	Config   Config
	Logger   *logger.Logger         `optional:"true"`
	Observer observability.Observer `optional:"true"`
}

func NewClientWithDI(params MinioParams) (*MinioClient, error) {
	client, err := NewClient(params.Config)
	if err != nil {
		return nil, err
	}
	if params.Logger != nil {
		client = client.WithLogger(params.Logger)
	}
	return client.WithObserver(params.Observer), nil
}

func RegisterLifecycle(lc fx.Lifecycle, client *MinioClient) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			client.GracefulShutdown()
			return nil
		},
	})
}
