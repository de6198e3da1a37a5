package queue

import "errors"

var (
	// ErrUnknownPostponeTime is returned when a postpone label is not in RetryQueues.
	ErrUnknownPostponeTime = errors.New("unknown postpone time")

	// ErrNotConnected is returned when an operation needs a broker connection and Init has not succeeded.
	ErrNotConnected = errors.New("queue client is not connected")

	// ErrConnectionClosed reports that the broker closed the delivery channel unexpectedly.
	ErrConnectionClosed = errors.New("broker connection closed")

	// ErrErrorsQueuesDisabled is returned when postponing without an errors channel.
	ErrErrorsQueuesDisabled = errors.New("errors queues are disabled")

	// ErrShutdownTimeout is returned by Close when in-flight handlers did not finish in time.
	ErrShutdownTimeout = errors.New("shutdown timeout waiting for in-flight messages")
)
