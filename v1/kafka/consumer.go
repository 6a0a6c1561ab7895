package kafka

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Message is a consumed record.
type Message interface {
	Key() string
	Body() []byte
	Topic() string
	Partition() int
	Offset() int64
	Time() time.Time

	// Header returns the record headers; repeated keys keep the last value.
	Header() map[string]string

	// CommitMsg marks the record as processed for the consumer group.
	CommitMsg() error
}

// ConsumerMessage implements Message over a kafka-go message.
type ConsumerMessage struct {
	msg    kafka.Message
	reader *kafka.Reader
}

func (m *ConsumerMessage) Key() string { return string(m.msg.Key) }
func (m *ConsumerMessage) Body() []byte { return m.msg.Value }
func (m *ConsumerMessage) Topic() string { return m.msg.Topic }
func (m *ConsumerMessage) Partition() int { return m.msg.Partition }
func (m *ConsumerMessage) Offset() int64 { return m.msg.Offset }
func (m *ConsumerMessage) Time() time.Time { return m.msg.Time }
func (m *ConsumerMessage) Header() map[string]string {
	return fromKafkaHeaders(m.msg.Headers)
}

// CommitMsg stages the offset; the reader flushes staged offsets every
// CommitInterval, keeping the highest per partition.
func (m *ConsumerMessage) CommitMsg() error {
	return m.reader.CommitMessages(context.Background(), m.msg)
}

// Consume is ConsumeParallel with a single fetcher.
func (k *KafkaClient) Consume(ctx context.Context, wg *sync.WaitGroup) <-chan Message {
	return k.ConsumeParallel(ctx, wg, 1)
}

// ConsumeParallel runs workers fetch loops feeding one channel. The channel is
// closed once ctx is cancelled or the client is closed. Fetch errors are
// logged and retried; they never end consumption.
//
// A client without a consumer topic returns a closed channel.
func (k *KafkaClient) ConsumeParallel(ctx context.Context, wg *sync.WaitGroup, workers int) <-chan Message {
	if workers <= 0 {
		workers = k.cfg.Workers
	}
	out := make(chan Message, workers*2)

	if k.reader == nil {
		createErrorLogger(k.cfg)("%v", ErrNoConsumer)
		close(out)
		return out
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-k.shutdownSignal:
			cancel()
		case <-ctx.Done():
		}
	}()

	var fetchers sync.WaitGroup
	for i := 0; i < workers; i++ {
		fetchers.Add(1)
		go func() {
			defer fetchers.Done()
			k.fetchLoop(ctx, out)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		fetchers.Wait()
		cancel()
		close(out)
	}()

	return out
}

func (k *KafkaClient) fetchLoop(ctx context.Context, out chan<- Message) {
	errorLog := createErrorLogger(k.cfg)
	for {
		start := time.Now()
		msg, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if isShutdown(ctx, err) {
				return
			}
			k.observeOperation("consume", k.cfg.ConsumerTopic, "", time.Since(start), err, 0)
			errorLog("fetch from %s failed: %v", k.cfg.ConsumerTopic, err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		k.observeOperation("consume", msg.Topic, strconv.Itoa(msg.Partition), time.Since(start), nil, int64(len(msg.Value)))

		select {
		case out <- &ConsumerMessage{msg: msg, reader: k.reader}:
		case <-ctx.Done():
			return
		}
	}
}
