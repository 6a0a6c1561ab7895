package schema_registry

import (
	"context"
	"log"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/schemawatch/v1/observability"
)

// FXModule provides *Client, or a nil *Client when no URL is configured.
var FXModule = fx.Module("schema_registry",
	fx.Provide(NewClientWithDI),
	fx.Invoke(RegisterSchemaRegistryLifecycle),
)

type SchemaRegistryParams struct {
	fx.In

	Config   Config
	Observer observability.Observer `optional:"true"`
}

// NewClientWithDI returns nil without error when the registry is not
// configured, so consumers can treat it as an optional capability.
func NewClientWithDI(params SchemaRegistryParams) (*Client, error) {
	if params.Config.URL == "" {
		log.Println("INFO: Schema Registry URL not set, external lookups disabled")
		return nil, nil
	}
	client, err := NewClient(params.Config)
	if err != nil {
		return nil, err
	}
	return client.WithObserver(params.Observer), nil
}

type SchemaRegistryLifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Client    *Client
}

func RegisterSchemaRegistryLifecycle(params SchemaRegistryLifecycleParams) {
	if params.Client == nil {
		return
	}
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Printf("INFO: Schema Registry client initialized for %s", params.Client.url)
			return nil
		},
	})
}
