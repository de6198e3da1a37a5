package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/operion-gateway/pkg/log"
	"github.com/dukex/operion-gateway/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

const (
	wipKeyPrefix  = "wip:"
	doneKeyPrefix = "done:"
)

type messageIDKey struct{}

// WithMessageID returns a copy of ctx carrying the id of the delivery being handled.
func WithMessageID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, messageIDKey{}, id)
}

// MessageID returns the id of the delivery handled under ctx, or "".
func MessageID(ctx context.Context) string {
	id, _ := ctx.Value(messageIDKey{}).(string)

	return id
}

// consume dispatches deliveries to handler goroutines. slots is shared by every
// subscription of the reading queue and bounds the deliveries handled at once.
func (c *Client) consume(ctx context.Context, messages <-chan *message.Message, slots chan struct{}, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() == nil {
					c.NotifyError(context.WithoutCancel(ctx), ErrConnectionClosed)
				}

				return
			}

			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				msg.Nack()

				return
			}

			c.inFlight.Add(1)

			go func() {
				defer func() {
					<-slots
					c.inFlight.Add(-1)
				}()

				// handlers finish their work even when consumption is being stopped
				c.handle(context.WithoutCancel(ctx), msg, handler)
			}()
		}
	}
}

func (c *Client) handle(ctx context.Context, msg *message.Message, handler Handler) {
	ctx = otelhelper.Extract(ctx, msg.Metadata)

	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "queue.consume",
		attribute.String(otelhelper.MessageIDKey, msg.UUID),
		attribute.String(otelhelper.QueueKey, c.cfg.ReadingQueue),
	)
	defer span.End()

	logger := c.logger.With("message_id", msg.UUID)
	ctx = log.WithLogger(ctx, logger)
	ctx = WithMessageID(ctx, msg.UUID)

	if !json.Valid(msg.Payload) {
		logger.ErrorContext(ctx, "Dropping malformed message", "payload", string(msg.Payload))
		otelhelper.SetError(span, errors.New("malformed message payload"))
		msg.Ack()

		return
	}

	wipKey := wipKeyPrefix + msg.UUID
	doneKey := doneKeyPrefix + msg.UUID

	acquired, err := c.idem.TryAcquire(ctx, wipKey, c.cfg.WIPTTL)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to acquire work-in-progress marker", "error", err)
		otelhelper.SetError(span, err)
		c.requeue(ctx, msg)

		return
	}

	if !acquired {
		logger.InfoContext(ctx, "Message is already being handled, requeueing")
		c.requeue(ctx, msg)

		return
	}

	done, err := c.idem.IsDone(ctx, doneKey)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read done marker", "error", err)
		otelhelper.SetError(span, err)
		c.release(ctx, wipKey)
		c.requeue(ctx, msg)

		return
	}

	if done {
		logger.InfoContext(ctx, "Message already handled, skipping")
		c.release(ctx, wipKey)
		msg.Ack()

		return
	}

	err = handler(ctx, msg.Payload)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to handle message", "error", err)
		otelhelper.SetError(span, err)
		c.release(ctx, wipKey)
		msg.Nack()

		return
	}

	err = c.idem.MarkDone(ctx, doneKey, c.cfg.DoneTTL)
	if err != nil {
		logger.WarnContext(ctx, "Failed to set done marker", "error", err)
	}

	c.release(ctx, wipKey)
	msg.Ack()
}

func (c *Client) requeue(ctx context.Context, msg *message.Message) {
	if c.cfg.RequeueDelay > 0 {
		timer := time.NewTimer(c.cfg.RequeueDelay)

		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	msg.Nack()
}

func (c *Client) release(ctx context.Context, key string) {
	err := c.idem.Release(ctx, key)
	if err != nil {
		log.FromContext(ctx, c.logger).WarnContext(ctx, "Failed to release marker", "key", key, "error", err)
	}
}
