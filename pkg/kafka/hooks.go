package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook wraps message handling with lifecycle callbacks. BeforeHandle
// may rewrite context, message, and payload; a non-nil error skips the
// handler and routes the message through error processing (OnError, DLQ,
// offset commit).
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error)
	AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
	OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
}

// NoopHook is the default hook.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	return ctx, km, data, nil
}

func (NoopHook) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
}

func (NoopHook) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {}

// IngestObserver reports per-message handling latency and failures to a
// caller-supplied sink. It never mutates the message.
type IngestObserver struct {
	// OnHandled receives topic, partition, handling duration, and the
	// handler's error (nil on success) after every attempt.
	OnHandled func(topic string, partition int, elapsed time.Duration, err error)
	// OnFailedAttempt receives every failed handling attempt, including
	// ones that will still be retried.
	OnFailedAttempt func(topic string, partition int, err error)
}

type observerStartKey struct{}

func (o *IngestObserver) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	return context.WithValue(ctx, observerStartKey{}, time.Now()), km, data, nil
}

func (o *IngestObserver) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	if o.OnHandled == nil {
		return
	}
	var elapsed time.Duration
	if start, ok := ctx.Value(observerStartKey{}).(time.Time); ok {
		elapsed = time.Since(start)
	}
	o.OnHandled(topic, km.Partition, elapsed, err)
}

func (o *IngestObserver) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	if o.OnFailedAttempt != nil {
		o.OnFailedAttempt(topic, km.Partition, err)
	}
}
