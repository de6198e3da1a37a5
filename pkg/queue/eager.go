package queue

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
)

// EagerSubscriber acks every message of the wrapped subscriber as soon as it arrives and
// redelivers nacked copies itself, so the wrapped subscriber never holds its next message
// back until a handler finishes. Messages waiting for redelivery are lost with the
// process, which only suits in-memory brokers.
type EagerSubscriber struct {
	message.Subscriber
}

func NewEagerSubscriber(subscriber message.Subscriber) *EagerSubscriber {
	return &EagerSubscriber{Subscriber: subscriber}
}

func (s *EagerSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	upstream, err := s.Subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}

	out := make(chan *message.Message)

	go forwardEagerly(ctx, upstream, out)

	return out, nil
}

func forwardEagerly(ctx context.Context, upstream <-chan *message.Message, out chan<- *message.Message) {
	var (
		wg   sync.WaitGroup
		stop = make(chan struct{})
	)

	defer func() {
		close(stop)
		wg.Wait()
		close(out)
	}()

	for {
		var (
			msg *message.Message
			ok  bool
		)

		select {
		case <-ctx.Done():
			return
		case msg, ok = <-upstream:
			if !ok {
				return
			}
		}

		msg.Ack()

		delivery := msg.Copy()

		select {
		case out <- delivery:
		case <-ctx.Done():
			return
		}

		wg.Add(1)

		go func() {
			defer wg.Done()

			redeliverNacked(ctx, stop, msg, delivery, out)
		}()
	}
}

// redeliverNacked sends a fresh copy of msg every time the current delivery is nacked.
func redeliverNacked(ctx context.Context, stop <-chan struct{}, msg, delivery *message.Message, out chan<- *message.Message) {
	for {
		select {
		case <-delivery.Acked():
			return
		case <-delivery.Nacked():
		case <-ctx.Done():
			return
		case <-stop:
			return
		}

		delivery = msg.Copy()

		select {
		case out <- delivery:
		case <-ctx.Done():
			return
		case <-stop:
			return
		}
	}
}
