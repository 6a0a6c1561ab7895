package kafka

import (
	"context"
	"errors"
	"io"

	"github.com/segmentio/kafka-go"
)

var (
	ErrNoBrokers  = errors.New("kafka: no brokers configured")
	ErrNoConsumer = errors.New("kafka: client has no consumer topic")
	ErrClosed     = errors.New("kafka: client closed")
)

// IsRetryable reports whether err is a transient broker error worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var kerr kafka.Error
	if errors.As(err, &kerr) {
		return kerr.Temporary()
	}
	return false
}

// isShutdown reports errors that mean the reader or the caller is done.
func isShutdown(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, context.Canceled)
}
