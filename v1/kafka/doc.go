// Package kafka wraps segmentio/kafka-go for the record pipeline: a group
// reader on the inbound topic and a single writer that can address any topic.
//
// Basic Usage:
//
//	client, err := kafka.NewClient(kafka.Config{
//		Brokers:       []string{"localhost:9092"},
//		ConsumerTopic: "raw-data",
//		ProducerTopic: "normalized-data",
//		GroupID:       "schemawatch",
//	})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	wg := &sync.WaitGroup{}
//	for msg := range client.ConsumeParallel(ctx, wg, 4) {
//		ctx := tracer.SetCarrierOnContext(ctx, msg.Header())
//		// process msg.Body()
//		if err := client.Publish(ctx, msg.Key(), out, tracer.GetCarrier(ctx)); err != nil {
//			log.Error("publish failed", err)
//		}
//		_ = msg.CommitMsg()
//	}
//	wg.Wait()
//
// Commits are staged and flushed every CommitInterval. kafka-go keeps the
// highest staged offset per partition, so workers may commit out of order.
//
// Configuration is read from KAFKA_* environment variables (see Config) and
// FXModule wires the client with the logger and an optional observer.
package kafka
