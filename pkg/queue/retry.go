package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
)

const enqueuedAtKey = "x-enqueued-at"

// RetryQueue is a delay queue. Messages stay in it for TTL and then return to the reading queue.
type RetryQueue struct {
	TTL   time.Duration
	Label string
}

// RetryQueues lists the delay queues, sorted by TTL.
var RetryQueues = []RetryQueue{
	{TTL: 10 * time.Minute, Label: "10m"},
	{TTL: time.Hour, Label: "1h"},
	{TTL: 2 * time.Hour, Label: "2h"},
	{TTL: 8 * time.Hour, Label: "8h"},
	{TTL: 24 * time.Hour, Label: "1d"},
}

// RetryQueueByLabel finds the delay queue for a postpone label.
func RetryQueueByLabel(label string) (RetryQueue, bool) {
	for _, retryQueue := range RetryQueues {
		if retryQueue.Label == label {
			return retryQueue, true
		}
	}

	return RetryQueue{}, false
}

// RetryQueueName is the broker name of a delay queue of the reading queue.
func (c *Client) RetryQueueName(retryQueue RetryQueue) string {
	return c.cfg.ReadingQueue + "-errors-" + retryQueue.Label
}

func (c *Client) startRelay(ctx context.Context, conn *Connection, retryQueue RetryQueue) error {
	name := c.RetryQueueName(retryQueue)

	messages, err := conn.ErrorsReader.Subscribe(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", name, err)
	}

	go c.relay(ctx, conn, retryQueue, messages)

	return nil
}

// relay holds each delayed message until its TTL expires and then dead-letters it back
// into the reading queue. Messages of one delay queue share the TTL, so they become due
// in arrival order.
func (c *Client) relay(ctx context.Context, conn *Connection, retryQueue RetryQueue, messages <-chan *message.Message) {
	logger := c.logger.With("queue", c.RetryQueueName(retryQueue))

	for msg := range messages {
		wait := c.dueIn(msg, retryQueue)
		if wait > 0 {
			timer := time.NewTimer(wait)

			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				msg.Nack()

				return
			}
		}

		out := message.NewMessage(msg.UUID, msg.Payload)
		for key, value := range msg.Metadata {
			if key != enqueuedAtKey {
				out.Metadata.Set(key, value)
			}
		}

		err := conn.Writer.Publish(c.cfg.ReadingQueue, out)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to move delayed message back", "message_id", msg.UUID, "error", err)
			msg.Nack()
			c.NotifyError(ctx, err)

			return
		}

		logger.InfoContext(ctx, "Delayed message returned to queue", "message_id", msg.UUID)
		msg.Ack()
	}
}

func (c *Client) dueIn(msg *message.Message, retryQueue RetryQueue) time.Duration {
	enqueuedAt, err := strconv.ParseInt(msg.Metadata.Get(enqueuedAtKey), 10, 64)
	if err != nil {
		return retryQueue.TTL
	}

	return time.UnixMilli(enqueuedAt).Add(retryQueue.TTL).Sub(c.now())
}
