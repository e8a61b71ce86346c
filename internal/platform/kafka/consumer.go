package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageHandler processes a single message. Returning an error makes the consumer
// retry the same message; return nil for messages that should be skipped.
type MessageHandler func(ctx context.Context, msg kafkago.Message) error

// Reader is the part of a kafka-go reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Consumer reads one topic as part of a consumer group.
type Consumer struct {
	reader       Reader
	logger       *zap.Logger
	retryInitial time.Duration
	retryMax     time.Duration
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithRetryInterval sets the backoff bounds used between failed attempts.
func WithRetryInterval(initial, max time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.retryInitial = initial
		c.retryMax = max
	}
}

// NewConsumer creates a consumer group reader for topic.
func NewConsumer(brokers []string, groupID, topic string, logger *zap.Logger, opts ...ConsumerOption) *Consumer {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	return NewReaderConsumer(reader, logger, opts...)
}

// NewReaderConsumer wraps an existing reader.
func NewReaderConsumer(reader Reader, logger *zap.Logger, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader:       reader,
		logger:       logger,
		retryInitial: 500 * time.Millisecond,
		retryMax:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Consumer) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	b.MaxInterval = c.retryMax
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Consume fetches messages until ctx is cancelled. A message is retried with
// backoff until the handler accepts it, and its offset is committed before the
// next one is fetched.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	fetchBackOff := c.newBackOff()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return context.Canceled
			}
			wait := fetchBackOff.NextBackOff()
			c.logger.Error("failed to fetch message", zap.Duration("retry_in", wait), zap.Error(err))
			if !sleep(ctx, wait) {
				return context.Canceled
			}
			continue
		}
		fetchBackOff.Reset()

		if err := c.handle(ctx, msg, handler); err != nil {
			return context.Canceled
		}

		if err := c.commit(ctx, msg); err != nil {
			return context.Canceled
		}
	}
}

// handle runs handler on msg until it succeeds or ctx is cancelled.
func (c *Consumer) handle(ctx context.Context, msg kafkago.Message, handler MessageHandler) error {
	attempt := 0
	return backoff.RetryNotify(
		func() error {
			attempt++
			return handler(ctx, msg)
		},
		backoff.WithContext(c.newBackOff(), ctx),
		func(err error, wait time.Duration) {
			c.logger.Error("message handler failed",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", wait),
				zap.Error(err),
			)
		},
	)
}

func (c *Consumer) commit(ctx context.Context, msg kafkago.Message) error {
	return backoff.RetryNotify(
		func() error { return c.reader.CommitMessages(ctx, msg) },
		backoff.WithContext(c.newBackOff(), ctx),
		func(err error, wait time.Duration) {
			c.logger.Error("failed to commit message",
				zap.Int64("offset", msg.Offset),
				zap.Duration("retry_in", wait),
				zap.Error(err),
			)
		},
	)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Close closes the reader and leaves the group.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
