// Package gochannel provides an in-memory broker for tests and local development.
package gochannel

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/dukex/operion-gateway/pkg/queue"
)

// Broker hands out connections to a single in-memory pub/sub. A reconnect after the
// pub/sub was closed gets a fresh one.
type Broker struct {
	logger watermill.LoggerAdapter

	mu     sync.Mutex
	pubSub *gochannel.GoChannel
	closed bool
}

func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{logger: watermill.NewSlogLogger(logger)}
}

// Dial implements queue.Dialer.
func (b *Broker) Dial(_ context.Context) (*queue.Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pubSub == nil || b.closed {
		b.pubSub = gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer:            1000,
				Persistent:                     false,
				BlockPublishUntilSubscriberAck: false,
			},
			b.logger,
		)
		b.closed = false
	}

	pubSub := &closeTracking{GoChannel: b.pubSub, broker: b}

	return &queue.Connection{
		Reader:       queue.NewEagerSubscriber(pubSub),
		Writer:       pubSub,
		Errors:       pubSub,
		ErrorsReader: pubSub,
	}, nil
}

// PubSub returns the current in-memory pub/sub.
func (b *Broker) PubSub() *gochannel.GoChannel {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.pubSub
}

type closeTracking struct {
	*gochannel.GoChannel
	broker *Broker
}

func (c *closeTracking) Close() error {
	c.broker.mu.Lock()
	if c.broker.pubSub == c.GoChannel {
		c.broker.closed = true
	}
	c.broker.mu.Unlock()

	return c.GoChannel.Close()
}
