package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/operion-gateway/pkg/otelhelper"
	"github.com/google/uuid"
)

type produceOptions struct {
	queue    string
	postpone string
}

// ProduceOption customizes a single Produce call.
type ProduceOption func(*produceOptions)

// WithQueue publishes to queue instead of the writing queue.
func WithQueue(queue string) ProduceOption {
	return func(o *produceOptions) {
		o.queue = queue
	}
}

// WithPostpone publishes into the delay queue labelled label. The message comes back
// to the reading queue once the delay elapses.
func WithPostpone(label string) ProduceOption {
	return func(o *produceOptions) {
		o.postpone = label
	}
}

// Produce serializes payload as JSON and publishes it. json.RawMessage and []byte
// payloads are sent as they are. It returns the id of the published message.
func (c *Client) Produce(ctx context.Context, payload any, opts ...ProduceOption) (string, error) {
	options := produceOptions{queue: c.cfg.WritingQueue}
	for _, opt := range opts {
		opt(&options)
	}

	var (
		retryQueue RetryQueue
		postponed  = options.postpone != ""
	)

	if postponed {
		var ok bool

		retryQueue, ok = RetryQueueByLabel(options.postpone)
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownPostponeTime, options.postpone)
		}

		if !c.cfg.ErrorsQueues {
			return "", ErrErrorsQueuesDisabled
		}
	}

	body, err := encode(payload)
	if err != nil {
		return "", err
	}

	conn, err := c.connection()
	if err != nil {
		return "", err
	}

	id := uuid.NewString()

	msg := message.NewMessage(id, body)
	otelhelper.Inject(ctx, msg.Metadata)

	publisher, topic := conn.Writer, options.queue
	if postponed {
		publisher, topic = conn.Errors, c.RetryQueueName(retryQueue)
		msg.Metadata.Set(enqueuedAtKey, strconv.FormatInt(c.now().UnixMilli(), 10))
	}

	err = publisher.Publish(topic, msg)
	if err != nil {
		c.NotifyError(ctx, err)

		return "", fmt.Errorf("failed to publish message to %s: %w", topic, err)
	}

	c.logger.DebugContext(ctx, "Published message", "message_id", id, "queue", topic)

	return id, nil
}

func encode(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		return p, nil
	case []byte:
		return p, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message payload: %w", err)
	}

	return body, nil
}
