package queue

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/operion-gateway/pkg/otelhelper"
	"go.opentelemetry.io/otel/trace"
)

// Handler processes the payload of one delivery. A returned error nacks the delivery.
type Handler func(ctx context.Context, payload []byte) error

// Client owns the broker connection, the consumer and the delay queue relays.
type Client struct {
	cfg    Config
	dial   Dialer
	idem   IdempotencyStore
	logger *slog.Logger
	tracer trace.Tracer

	exit func(code int)
	now  func() time.Time

	mu             sync.Mutex
	runCtx         context.Context
	conn           *Connection
	handler        Handler
	consumeCancel  context.CancelFunc
	relayCancel    context.CancelFunc
	reconnectTimer *time.Timer
	closing        bool

	inFlight   atomic.Int64
	reconnects atomic.Int64
}

// Option customizes a Client.
type Option func(*Client)

// WithExit replaces the function called on fatal errors and shutdown timeouts.
func WithExit(exit func(code int)) Option {
	return func(c *Client) {
		c.exit = exit
	}
}

// WithClock replaces the time source used by the delay queues.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

func NewClient(
	cfg Config,
	dial Dialer,
	idem IdempotencyStore,
	logger *slog.Logger,
	tracer trace.Tracer,
	opts ...Option,
) (*Client, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	if tracer == nil {
		tracer = otelhelper.NoopTracer()
	}

	client := &Client{
		cfg:    cfg,
		dial:   dial,
		idem:   idem,
		logger: logger.With("module", "queue"),
		tracer: tracer,
		exit:   os.Exit,
		now:    time.Now,
		runCtx: context.Background(),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Init connects to the broker, declares the queues and starts the delay queue relays.
func (c *Client) Init(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}

	err = c.declare(conn)
	if err != nil {
		closeErr := conn.Close()
		if closeErr != nil {
			c.logger.ErrorContext(ctx, "Failed to close broker connection", "error", closeErr)
		}

		return err
	}

	relayCtx, relayCancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.runCtx = ctx
	c.conn = conn
	c.relayCancel = relayCancel
	c.mu.Unlock()

	if c.cfg.ErrorsQueues {
		for _, retryQueue := range RetryQueues {
			err := c.startRelay(relayCtx, conn, retryQueue)
			if err != nil {
				return err
			}
		}
	}

	c.logger.InfoContext(ctx, "Connected to broker",
		"reading_queue", c.cfg.ReadingQueue,
		"writing_queue", c.cfg.WritingQueue,
		"errors_queues", c.cfg.ErrorsQueues,
	)

	return nil
}

func (c *Client) declare(conn *Connection) error {
	if initializer, ok := conn.Reader.(message.SubscribeInitializer); ok {
		err := initializer.SubscribeInitialize(c.cfg.ReadingQueue)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", c.cfg.ReadingQueue, err)
		}
	}

	if !c.cfg.ErrorsQueues {
		return nil
	}

	if conn.Errors == nil || conn.ErrorsReader == nil {
		return fmt.Errorf("failed to declare delay queues: %w", ErrErrorsQueuesDisabled)
	}

	if initializer, ok := conn.ErrorsReader.(message.SubscribeInitializer); ok {
		for _, retryQueue := range RetryQueues {
			name := c.RetryQueueName(retryQueue)

			err := initializer.SubscribeInitialize(name)
			if err != nil {
				return fmt.Errorf("failed to declare queue %s: %w", name, err)
			}
		}
	}

	return nil
}

// Subscribe starts consuming the reading queue with handler. The handler is kept and
// resumed after every reconnect.
func (c *Client) Subscribe(ctx context.Context, handler Handler) error {
	c.mu.Lock()

	conn := c.conn
	if conn == nil {
		c.mu.Unlock()

		return ErrNotConnected
	}

	if c.consumeCancel != nil {
		c.consumeCancel()
	}

	consumeCtx, cancel := context.WithCancel(ctx)
	c.handler = handler
	c.consumeCancel = cancel
	c.mu.Unlock()

	subscriptions := 1
	if conn.SharedSubscriptions {
		subscriptions = c.cfg.MaxHandlingMessages
	}

	slots := make(chan struct{}, c.cfg.MaxHandlingMessages)

	for range subscriptions {
		messages, err := conn.Reader.Subscribe(consumeCtx, c.cfg.ReadingQueue)
		if err != nil {
			cancel()

			return fmt.Errorf("failed to subscribe to %s: %w", c.cfg.ReadingQueue, err)
		}

		go c.consume(consumeCtx, messages, slots, handler)
	}

	c.logger.InfoContext(ctx, "Consuming queue",
		"queue", c.cfg.ReadingQueue,
		"max_handling_messages", c.cfg.MaxHandlingMessages,
		"subscriptions", subscriptions,
	)

	return nil
}

// Reconnect schedules a single reconnect attempt after ReconnectDelay. It does nothing
// while the client is closing or when an attempt is already pending.
func (c *Client) Reconnect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closing || c.reconnectTimer != nil {
		return
	}

	c.logger.WarnContext(ctx, "Scheduling broker reconnect", "delay", c.cfg.ReconnectDelay)

	c.reconnectTimer = time.AfterFunc(c.cfg.ReconnectDelay, c.reconnect)
}

func (c *Client) reconnect() {
	c.mu.Lock()

	c.reconnectTimer = nil

	if c.closing {
		c.mu.Unlock()

		return
	}

	ctx := c.runCtx
	handler := c.handler
	stale := c.conn

	if c.consumeCancel != nil {
		c.consumeCancel()
		c.consumeCancel = nil
	}

	if c.relayCancel != nil {
		c.relayCancel()
		c.relayCancel = nil
	}

	c.conn = nil
	c.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	if stale != nil {
		err := stale.Close()
		if err != nil {
			c.logger.WarnContext(ctx, "Failed to close stale broker connection", "error", err)
		}
	}

	err := c.Init(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "Reconnect failed", "error", err)
		c.Reconnect(ctx)

		return
	}

	c.reconnects.Add(1)

	if handler == nil {
		return
	}

	err = c.Subscribe(ctx, handler)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to resume consumer after reconnect", "error", err)
		c.Reconnect(ctx)
	}
}

// NotifyError reports a broker error. It always schedules a reconnect and exits the
// process when the error matches one of the fatal errors.
func (c *Client) NotifyError(ctx context.Context, err error) {
	c.logger.ErrorContext(ctx, "Broker error", "error", err)

	c.Reconnect(ctx)

	if c.isFatal(err) {
		c.logger.ErrorContext(ctx, "Fatal broker error, exiting", "error", err)
		c.exit(1)
	}
}

func (c *Client) isFatal(err error) bool {
	text := err.Error()

	for _, fatal := range c.cfg.FatalErrors {
		if fatal != "" && strings.Contains(text, fatal) {
			return true
		}
	}

	return false
}

// Close stops consuming and waits for in-flight handlers before closing the connection.
// When ShutdownTimeout elapses first the process exits with code 1.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()

	if c.closing {
		c.mu.Unlock()

		return nil
	}

	c.closing = true

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}

	if c.consumeCancel != nil {
		c.consumeCancel()
	}

	if c.relayCancel != nil {
		c.relayCancel()
	}

	conn := c.conn
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Closing queue client", "in_flight", c.InFlight())

	ticker := time.NewTicker(c.cfg.ShutdownPollInterval)
	defer ticker.Stop()

	deadline := time.NewTimer(c.cfg.ShutdownTimeout)
	defer deadline.Stop()

	for c.InFlight() > 0 {
		select {
		case <-ticker.C:
		case <-deadline.C:
			c.logger.ErrorContext(ctx, "Timed out waiting for in-flight messages", "in_flight", c.InFlight())
			c.exit(1)

			return ErrShutdownTimeout
		}
	}

	if conn == nil {
		return nil
	}

	err := conn.Close()
	if err != nil {
		return fmt.Errorf("failed to close broker connection: %w", err)
	}

	return nil
}

// InFlight returns the number of deliveries currently being handled.
func (c *Client) InFlight() int64 {
	return c.inFlight.Load()
}

// Reconnects returns how many reconnects succeeded.
func (c *Client) Reconnects() int64 {
	return c.reconnects.Load()
}

// Connected reports whether a broker connection is established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn != nil
}

func (c *Client) connection() (*Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}

	return c.conn, nil
}
