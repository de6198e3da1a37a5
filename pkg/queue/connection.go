package queue

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Connection groups the broker channels used by the client. Errors and ErrorsReader
// carry the delay queues and may be nil when delay queues are disabled.
type Connection struct {
	Reader       message.Subscriber
	Writer       message.Publisher
	Errors       message.Publisher
	ErrorsReader message.Subscriber
	// SharedSubscriptions is set when subscriptions on one Reader topic compete for its
	// messages, as consumer group members do. The client then opens one subscription per
	// handling slot.
	SharedSubscriptions bool
}

// Dialer opens a new broker connection.
type Dialer func(ctx context.Context) (*Connection, error)

// Close closes every channel of the connection.
func (c *Connection) Close() error {
	var errs []error

	closed := make(map[any]bool, 4)

	for _, closer := range []interface{ Close() error }{c.Reader, c.Writer, c.Errors, c.ErrorsReader} {
		if closer == nil || closed[closer] {
			continue
		}

		closed[closer] = true

		err := closer.Close()
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
