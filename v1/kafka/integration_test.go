package kafka_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/Aleph-Alpha/schemawatch/internal/testutil"
	"github.com/Aleph-Alpha/schemawatch/v1/kafka"
	"github.com/Aleph-Alpha/schemawatch/v1/logger"
	"github.com/Aleph-Alpha/schemawatch/v1/observability"
)

func TestPublishAndConsumeParallel(t *testing.T) {
	broker := testutil.StartKafka(t)
	topic := fmt.Sprintf("raw-data-%d", time.Now().UnixNano())

	rec := &observability.Recorder{}
	var client *kafka.KafkaClient
	app := fxtest.New(t,
		fx.Provide(
			func() kafka.Config {
				return kafka.Config{
					Brokers:        []string{broker},
					ConsumerTopic:  topic,
					ProducerTopic:  topic,
					GroupID:        "integration",
					CommitInterval: 100 * time.Millisecond,
				}
			},
			func() observability.Observer { return rec },
			logger.NewNop,
		),
		kafka.FXModule,
		fx.Populate(&client),
	)
	app.RequireStart()
	defer app.RequireStop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	const n = 20
	for i := 0; i < n; i++ {
		err := client.Publish(ctx, fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf(`{"n":%d}`, i)), map[string]string{"traceparent": "x"})
		require.NoError(t, err)
	}

	wg := &sync.WaitGroup{}
	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()
	msgs := client.ConsumeParallel(consumeCtx, wg, 3)

	seen := map[string]bool{}
	for msg := range msgs {
		assert.Equal(t, "x", msg.Header()["traceparent"])
		seen[msg.Key()] = true
		require.NoError(t, msg.CommitMsg())
		if len(seen) == n {
			stop()
		}
	}
	wg.Wait()

	assert.Len(t, seen, n)
	assert.NotEmpty(t, rec.Find("kafka", "produce"))
	assert.NotEmpty(t, rec.Find("kafka", "consume"))
}
