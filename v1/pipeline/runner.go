package pipeline

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Aleph-Alpha/schemawatch/v1/kafka"
)

// Consumer is implemented by *kafka.KafkaClient.
type Consumer interface {
	ConsumeParallel(ctx context.Context, wg *sync.WaitGroup, workers int) <-chan kafka.Message
}

// Runner feeds consumed messages through a Processor.
type Runner struct {
	consumer  Consumer
	processor *Processor
	workers   int
	log       Logger
}

func NewRunner(consumer Consumer, processor *Processor, log Logger) *Runner {
	if log == nil {
		log = nopLogger{}
	}
	return &Runner{
		consumer:  consumer,
		processor: processor,
		workers:   processor.cfg.Workers,
		log:       log,
	}
}

// Run consumes until ctx is cancelled. At most Workers records are in
// flight; records already started when ctx ends are finished and committed
// within RecordTimeout. A failed record is logged and committed, so Run only
// returns once consumption has stopped.
func (r *Runner) Run(ctx context.Context) error {
	var fetchers sync.WaitGroup
	msgs := r.consumer.ConsumeParallel(ctx, &fetchers, r.workers)

	var g errgroup.Group
	g.SetLimit(r.workers)
	for msg := range msgs {
		g.Go(func() error {
			r.handle(ctx, msg)
			return nil
		})
	}

	err := g.Wait()
	fetchers.Wait()
	return err
}

func (r *Runner) handle(parent context.Context, msg kafka.Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), r.processor.cfg.RecordTimeout)
	defer cancel()

	fields := map[string]interface{}{
		"topic":     msg.Topic(),
		"partition": msg.Partition(),
		"offset":    msg.Offset(),
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.ErrorWithContext(ctx, "record processing panicked", fmt.Errorf("panic: %v", rec), fields)
			r.commit(ctx, msg, fields)
		}
	}()

	if _, err := r.processor.Process(ctx, RecordFromMessage(msg)); err != nil {
		r.log.ErrorWithContext(ctx, "record was not forwarded", err, fields)
	}
	r.commit(ctx, msg, fields)
}

func (r *Runner) commit(ctx context.Context, msg kafka.Message, fields map[string]interface{}) {
	if err := msg.CommitMsg(); err != nil {
		r.log.WarnWithContext(ctx, "failed to commit record", err, fields)
	}
}
