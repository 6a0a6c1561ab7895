package api

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/schemawatch/v1/kafka"
	"github.com/Aleph-Alpha/schemawatch/v1/logger"
	"github.com/Aleph-Alpha/schemawatch/v1/pipeline"
	"github.com/Aleph-Alpha/schemawatch/v1/versioning"
)

var FXModule = fx.Module("api",
	fx.Provide(NewServerWithDI),
	fx.Invoke(RegisterServerLifecycle),
)

type ServerParams struct {
	fx.In

	Config   Config
	Registry *versioning.Registry
	Versions versioning.ReadStore
	Metadata pipeline.MetadataStore
	Logger   *logger.Logger
	Kafka    *kafka.KafkaClient `optional:"true"`
	Features Features           `optional:"true"`
}

func NewServerWithDI(params ServerParams) *Server {
	deps := Deps{
		Registry: params.Registry,
		Versions: params.Versions,
		Metadata: params.Metadata,
		Features: params.Features,
	}
	if params.Kafka != nil {
		deps.Producer = params.Kafka
	}
	return NewServer(params.Config, deps, params.Logger)
}

// RegisterServerLifecycle binds the listener on start so address errors fail
// startup, then serves in the background.
func RegisterServerLifecycle(lc fx.Lifecycle, s *Server, log *logger.Logger) {
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			l, err := net.Listen("tcp", s.Addr())
			if err != nil {
				return fmt.Errorf("listen on %s: %w", s.Addr(), err)
			}
			log.Info("starting HTTP API", nil, map[string]interface{}{"address": l.Addr().String()})
			go func() {
				defer close(done)
				if err := s.Serve(l); err != nil {
					log.Error("HTTP API stopped", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down HTTP API", nil)
			err := s.Shutdown(ctx)
			<-done
			return err
		},
	})
}
