package rabbit

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publish sends msg with the configured routing key and waits for the
// broker confirm.
func (rb *RabbitClient) Publish(ctx context.Context, msg []byte, headers map[string]interface{}) error {
	return rb.PublishWithKey(ctx, rb.cfg.Channel.RoutingKey, msg, headers)
}

// PublishWithKey is Publish with an explicit routing key.
func (rb *RabbitClient) PublishWithKey(ctx context.Context, routingKey string, msg []byte, headers map[string]interface{}) (err error) {
	start := time.Now()
	defer func() {
		rb.observeOperation("produce", rb.cfg.Channel.ExchangeName, routingKey, time.Since(start), err, int64(len(msg)))
	}()

	select {
	case <-rb.shutdownSignal:
		return ErrClosed
	default:
	}

	rb.mu.RLock()
	ch := rb.channel
	rb.mu.RUnlock()
	if ch == nil || ch.IsClosed() {
		return ErrNotConnected
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx,
		rb.cfg.Channel.ExchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			Headers:      amqp.Table(headers),
			ContentType:  rb.cfg.Channel.ContentType,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         msg,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", rb.cfg.Channel.ExchangeName, err)
	}

	ok, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm: %w", err)
	}
	if !ok {
		return ErrNack
	}
	return nil
}
