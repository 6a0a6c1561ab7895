package kafka

import (
	"context"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/schemawatch/v1/logger"
	"github.com/Aleph-Alpha/schemawatch/v1/observability"
)

var FXModule = fx.Module("kafka",
	fx.Provide(NewClientWithDI),
	fx.Invoke(RegisterKafkaLifecycle),
)

type KafkaParams struct {
	fx.In

	Config   Config
	Logger   *logger.Logger         `optional:"true"`
	Observer observability.Observer `optional:"true"`
}

// NewClientWithDI routes kafka-go errors to the logger when one is provided.
func NewClientWithDI(params KafkaParams) (*KafkaClient, error) {
	cfg := params.Config
	if params.Logger != nil && cfg.Logger == nil {
		cfg.Logger = params.Logger
	}

	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return client.WithObserver(params.Observer), nil
}

type KafkaLifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Client    *KafkaClient
}

func RegisterKafkaLifecycle(params KafkaLifecycleParams) {
	params.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return params.Client.Close()
		},
	})
}
