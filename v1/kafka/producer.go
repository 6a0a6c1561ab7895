package kafka

import (
	"context"
	"sort"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publish writes body to the configured producer topic. headers usually
// carry the trace context from tracer.GetCarrier.
func (k *KafkaClient) Publish(ctx context.Context, key string, body []byte, headers map[string]string) error {
	return k.PublishTo(ctx, k.cfg.ProducerTopic, key, body, headers)
}

// PublishTo writes body to topic.
func (k *KafkaClient) PublishTo(ctx context.Context, topic, key string, body []byte, headers map[string]string) error {
	select {
	case <-k.shutdownSignal:
		return ErrClosed
	default:
	}

	msg := kafka.Message{
		Topic:   topic,
		Value:   body,
		Headers: toKafkaHeaders(headers),
	}
	if key != "" {
		msg.Key = []byte(key)
	}

	start := time.Now()
	k.mu.RLock()
	err := k.writer.WriteMessages(ctx, msg)
	k.mu.RUnlock()
	k.observeOperation("produce", topic, key, time.Since(start), err, int64(len(body)))
	return err
}

func toKafkaHeaders(headers map[string]string) []kafka.Header {
	if len(headers) == 0 {
		return nil
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]kafka.Header, 0, len(keys))
	for _, k := range keys {
		out = append(out, kafka.Header{Key: k, Value: []byte(headers[k])})
	}
	return out
}

func fromKafkaHeaders(headers []kafka.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		out[h.Key] = string(h.Value)
	}
	return out
}
