package messaging

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Handler processes a single event. Handlers are synchronous and easy to test.
type Handler[T any] func(ctx context.Context, event *T) error

// Consumer subscribes to a topic and hands each message to a typed handler at most once.
//
// Every message is acked, including ones that fail to decode or whose handler returns an
// error: a failed delivery is logged and counted as dropped, never redelivered.
type Consumer[T any] struct {
	subscriber message.Subscriber
	topic      string
	handler    Handler[T]
	logger     *zap.Logger
	cancel     context.CancelFunc
	done       chan struct{}
	handled    atomic.Int64
	dropped    atomic.Int64
}

// NewConsumer creates a new generic consumer for a specific event type.
func NewConsumer[T any](
	subscriber message.Subscriber,
	topic string,
	handler Handler[T],
	logger *zap.Logger,
) *Consumer[T] {
	return &Consumer[T]{
		subscriber: subscriber,
		topic:      topic,
		handler:    handler,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Topic returns the topic this consumer subscribes to.
func (c *Consumer[T]) Topic() string {
	return c.topic
}

// Stats returns how many messages were handled successfully and how many were dropped.
func (c *Consumer[T]) Stats() (handled, dropped int64) {
	return c.handled.Load(), c.dropped.Load()
}

// Start begins consuming messages from the topic.
func (c *Consumer[T]) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	msgs, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		c.cancel()
		c.cancel = nil

		return err
	}

	go c.consumeLoop(ctx, msgs)

	return nil
}

func (c *Consumer[T]) consumeLoop(ctx context.Context, msgs <-chan *message.Message) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			c.handleMessage(ctx, msg)
		}
	}
}

func (c *Consumer[T]) handleMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var event T
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		c.drop(msg, "failed to unmarshal event", err)

		return
	}

	if err := c.handler(ctx, &event); err != nil {
		c.drop(msg, "failed to handle event", err)

		return
	}

	c.handled.Add(1)
	c.logger.Debug("processed event",
		zap.String("topic", c.topic),
		zap.String("message_uuid", msg.UUID),
	)
}

func (c *Consumer[T]) drop(msg *message.Message, reason string, err error) {
	c.dropped.Add(1)
	c.logger.Error(reason,
		zap.String("topic", c.topic),
		zap.String("message_uuid", msg.UUID),
		zap.Error(err),
	)
}

// Shutdown stops the consumer and waits for the in-flight message to complete.
func (c *Consumer[T]) Shutdown() error {
	if c.cancel == nil {
		return nil
	}

	c.cancel()
	<-c.done

	return nil
}
