package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testBroker struct {
	mu      sync.Mutex
	pubSubs []*gochannel.GoChannel
	dials   atomic.Int64
	failing atomic.Bool
}

func (b *testBroker) dial(_ context.Context) (*Connection, error) {
	b.dials.Add(1)

	if b.failing.Load() {
		return nil, errors.New("dial tcp: connection refused")
	}

	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 10,
	}, watermill.NopLogger{})

	b.mu.Lock()
	b.pubSubs = append(b.pubSubs, pubSub)
	b.mu.Unlock()

	return &Connection{
		Reader:       NewEagerSubscriber(pubSub),
		Writer:       pubSub,
		Errors:       pubSub,
		ErrorsReader: pubSub,
	}, nil
}

func (b *testBroker) current() *gochannel.GoChannel {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.pubSubs[len(b.pubSubs)-1]
}

type exitRecorder struct {
	codes chan int
}

func newExitRecorder() *exitRecorder {
	return &exitRecorder{codes: make(chan int, 10)}
}

func (e *exitRecorder) exit(code int) {
	e.codes <- code
}

func testConfig() Config {
	cfg := DefaultConfig("gateways", "gateways-out")
	cfg.ErrorsQueues = false
	cfg.RequeueDelay = 10 * time.Millisecond
	cfg.ReconnectDelay = 20 * time.Millisecond
	cfg.ShutdownTimeout = time.Second
	cfg.ShutdownPollInterval = 5 * time.Millisecond

	return cfg
}

func newTestClient(t *testing.T, cfg Config, broker *testBroker, store IdempotencyStore, opts ...Option) *Client {
	t.Helper()

	client, err := NewClient(cfg, broker.dial, store, slog.Default(), nil, opts...)
	require.NoError(t, err)

	require.NoError(t, client.Init(context.Background()))

	return client
}

func subscribeRaw(t *testing.T, pubSub *gochannel.GoChannel, topic string) <-chan *message.Message {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	messages, err := pubSub.Subscribe(ctx, topic)
	require.NoError(t, err)

	return messages
}

func receive(t *testing.T, messages <-chan *message.Message) *message.Message {
	t.Helper()

	select {
	case msg := <-messages:
		msg.Ack()

		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")

		return nil
	}
}

func TestNewClient_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ReadingQueue = ""
	cfg.MaxHandlingMessages = 0

	_, err := NewClient(cfg, (&testBroker{}).dial, NewMemoryStore(), slog.Default(), nil)
	assert.Error(t, err)
}

func TestClient_ProduceAndSubscribe(t *testing.T) {
	broker := &testBroker{}
	client := newTestClient(t, testConfig(), broker, NewMemoryStore())

	handled := make(chan []byte, 1)

	err := client.Subscribe(context.Background(), func(_ context.Context, payload []byte) error {
		handled <- payload

		return nil
	})
	require.NoError(t, err)

	_, err = client.Produce(context.Background(), map[string]string{"workflowId": "w1"}, WithQueue("gateways"))
	require.NoError(t, err)

	select {
	case payload := <-handled:
		assert.JSONEq(t, `{"workflowId":"w1"}`, string(payload))
	case <-time.After(2 * time.Second):
		t.Fatal("message was not handled")
	}

	require.NoError(t, client.Close(context.Background()))
}

func TestClient_ProduceToWritingQueue(t *testing.T) {
	broker := &testBroker{}
	client := newTestClient(t, testConfig(), broker, NewMemoryStore())

	out := subscribeRaw(t, broker.current(), "gateways-out")

	id, err := client.Produce(context.Background(), json.RawMessage(`{"workflowId":"w1","gatewayId":"g1"}`))
	require.NoError(t, err)

	msg := receive(t, out)
	assert.Equal(t, id, msg.UUID)
	assert.JSONEq(t, `{"workflowId":"w1","gatewayId":"g1"}`, string(msg.Payload))
}

func TestClient_MalformedMessageIsDropped(t *testing.T) {
	broker := &testBroker{}
	client := newTestClient(t, testConfig(), broker, NewMemoryStore())

	var calls atomic.Int64

	require.NoError(t, client.Subscribe(context.Background(), func(_ context.Context, _ []byte) error {
		calls.Add(1)

		return nil
	}))

	malformed := message.NewMessage("bad-1", []byte("{not json"))
	require.NoError(t, broker.current().Publish("gateways", malformed))

	good := message.NewMessage("good-1", []byte(`{}`))
	require.NoError(t, broker.current().Publish("gateways", good))

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return client.InFlight() == 0 }, time.Second, 10*time.Millisecond)
}

func TestClient_DoneMessageIsSkipped(t *testing.T) {
	broker := &testBroker{}
	store := NewMemoryStore()
	client := newTestClient(t, testConfig(), broker, store)

	require.NoError(t, store.MarkDone(context.Background(), "done:m-1", time.Hour))

	var calls atomic.Int64

	require.NoError(t, client.Subscribe(context.Background(), func(_ context.Context, _ []byte) error {
		calls.Add(1)

		return nil
	}))

	require.NoError(t, broker.current().Publish("gateways", message.NewMessage("m-1", []byte(`{}`))))
	require.NoError(t, broker.current().Publish("gateways", message.NewMessage("m-2", []byte(`{}`))))

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	done, err := store.IsDone(context.Background(), "done:m-2")
	require.NoError(t, err)
	assert.True(t, done)

	acquired, err := store.TryAcquire(context.Background(), "wip:m-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired, "work-in-progress marker must be released after handling")
}

func TestClient_WorkInProgressIsRequeued(t *testing.T) {
	broker := &testBroker{}
	store := NewMemoryStore()
	client := newTestClient(t, testConfig(), broker, store)

	acquired, err := store.TryAcquire(context.Background(), "wip:m-1", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	var calls atomic.Int64

	require.NoError(t, client.Subscribe(context.Background(), func(_ context.Context, _ []byte) error {
		calls.Add(1)

		return nil
	}))

	require.NoError(t, broker.current().Publish("gateways", message.NewMessage("m-1", []byte(`{}`))))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(0), calls.Load())

	require.NoError(t, store.Release(context.Background(), "wip:m-1"))

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestClient_HandlerErrorReleasesAndRedelivers(t *testing.T) {
	broker := &testBroker{}
	store := NewMemoryStore()
	client := newTestClient(t, testConfig(), broker, store)

	var calls atomic.Int64

	require.NoError(t, client.Subscribe(context.Background(), func(_ context.Context, _ []byte) error {
		if calls.Add(1) == 1 {
			return errors.New("temporary failure")
		}

		return nil
	}))

	require.NoError(t, broker.current().Publish("gateways", message.NewMessage("m-1", []byte(`{}`))))

	assert.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		done, _ := store.IsDone(context.Background(), "done:m-1")

		return done
	}, time.Second, 10*time.Millisecond)
}

func TestClient_PrefetchLimitsConcurrentHandlers(t *testing.T) {
	cfg := testConfig()
	cfg.MaxHandlingMessages = 3

	broker := &testBroker{}
	client := newTestClient(t, cfg, broker, NewMemoryStore())

	release := make(chan struct{})

	var (
		current atomic.Int64
		peak    atomic.Int64
		handled atomic.Int64
	)

	require.NoError(t, client.Subscribe(context.Background(), func(_ context.Context, _ []byte) error {
		now := current.Add(1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}

		<-release
		current.Add(-1)
		handled.Add(1)

		return nil
	}))

	for i := range 5 {
		require.NoError(t, broker.current().Publish("gateways", message.NewMessage("m-"+strconv.Itoa(i), []byte(`{}`))))
	}

	require.Eventually(t, func() bool { return peak.Load() == 3 }, 2*time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(3), client.InFlight())
	assert.Equal(t, int64(3), current.Load())

	close(release)

	assert.Eventually(t, func() bool { return handled.Load() == 5 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(3), peak.Load())
}

type countingSubscriber struct {
	message.Subscriber
	subscriptions atomic.Int64
}

func (s *countingSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.subscriptions.Add(1)

	return s.Subscriber.Subscribe(ctx, topic)
}

func TestClient_SharedSubscriptionsOpensOnePerSlot(t *testing.T) {
	cfg := testConfig()
	cfg.MaxHandlingMessages = 4

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	reader := &countingSubscriber{Subscriber: pubSub}

	dial := func(_ context.Context) (*Connection, error) {
		return &Connection{Reader: reader, Writer: pubSub, SharedSubscriptions: true}, nil
	}

	client, err := NewClient(cfg, dial, NewMemoryStore(), slog.Default(), nil)
	require.NoError(t, err)
	require.NoError(t, client.Init(context.Background()))

	require.NoError(t, client.Subscribe(context.Background(), func(_ context.Context, _ []byte) error { return nil }))

	assert.Equal(t, int64(4), reader.subscriptions.Load())
}

func TestClient_SingleSubscriptionByDefault(t *testing.T) {
	cfg := testConfig()
	cfg.MaxHandlingMessages = 4

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	reader := &countingSubscriber{Subscriber: NewEagerSubscriber(pubSub)}

	dial := func(_ context.Context) (*Connection, error) {
		return &Connection{Reader: reader, Writer: pubSub}, nil
	}

	client, err := NewClient(cfg, dial, NewMemoryStore(), slog.Default(), nil)
	require.NoError(t, err)
	require.NoError(t, client.Init(context.Background()))

	require.NoError(t, client.Subscribe(context.Background(), func(_ context.Context, _ []byte) error { return nil }))

	assert.Equal(t, int64(1), reader.subscriptions.Load())
}

func TestClient_UnknownPostponeTime(t *testing.T) {
	cfg := testConfig()
	cfg.ErrorsQueues = true

	client := newTestClient(t, cfg, &testBroker{}, NewMemoryStore())

	_, err := client.Produce(context.Background(), map[string]string{}, WithPostpone("3h"))
	assert.ErrorIs(t, err, ErrUnknownPostponeTime)
}

func TestClient_PostponeWithoutErrorsQueues(t *testing.T) {
	client := newTestClient(t, testConfig(), &testBroker{}, NewMemoryStore())

	_, err := client.Produce(context.Background(), map[string]string{}, WithPostpone("10m"))
	assert.ErrorIs(t, err, ErrErrorsQueuesDisabled)
}

func TestClient_PostponedMessageReturnsToReadingQueue(t *testing.T) {
	cfg := testConfig()
	cfg.ErrorsQueues = true

	var offset atomic.Int64

	clock := func() time.Time {
		return time.Now().Add(time.Duration(offset.Load()))
	}

	broker := &testBroker{}
	client := newTestClient(t, cfg, broker, NewMemoryStore(), WithClock(clock))

	delayed := subscribeRaw(t, broker.current(), "gateways-errors-10m")
	reading := subscribeRaw(t, broker.current(), "gateways")

	// pretend the message was enqueued 10 minutes ago
	offset.Store(int64(-10 * time.Minute))

	id, err := client.Produce(context.Background(), map[string]string{"workflowId": "w1"}, WithPostpone("10m"))
	require.NoError(t, err)

	offset.Store(0)

	msg := receive(t, delayed)
	assert.Equal(t, id, msg.UUID)
	assert.NotEmpty(t, msg.Metadata.Get(enqueuedAtKey))

	back := receive(t, reading)
	assert.Equal(t, id, back.UUID)
	assert.JSONEq(t, `{"workflowId":"w1"}`, string(back.Payload))
	assert.Empty(t, back.Metadata.Get(enqueuedAtKey))
}

func TestClient_RetryQueueNames(t *testing.T) {
	client := newTestClient(t, testConfig(), &testBroker{}, NewMemoryStore())

	names := make([]string, 0, len(RetryQueues))
	for _, retryQueue := range RetryQueues {
		names = append(names, client.RetryQueueName(retryQueue))
	}

	assert.Equal(t, []string{
		"gateways-errors-10m",
		"gateways-errors-1h",
		"gateways-errors-2h",
		"gateways-errors-8h",
		"gateways-errors-1d",
	}, names)

	for i := 1; i < len(RetryQueues); i++ {
		assert.Less(t, RetryQueues[i-1].TTL, RetryQueues[i].TTL)
	}

	oneDay, ok := RetryQueueByLabel("1d")
	require.True(t, ok)
	assert.Equal(t, 24*time.Hour, oneDay.TTL)
}

func TestClient_ReconnectSchedulesSingleAttempt(t *testing.T) {
	broker := &testBroker{}
	client := newTestClient(t, testConfig(), broker, NewMemoryStore())

	for range 5 {
		client.Reconnect(context.Background())
	}

	assert.Eventually(t, func() bool { return client.Reconnects() == 1 }, 2*time.Second, 5*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), client.Reconnects())
	assert.Equal(t, int64(2), broker.dials.Load())
}

func TestClient_ReconnectRetriesUntilDialSucceeds(t *testing.T) {
	broker := &testBroker{}
	client := newTestClient(t, testConfig(), broker, NewMemoryStore())

	broker.failing.Store(true)
	client.Reconnect(context.Background())

	assert.Eventually(t, func() bool { return broker.dials.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), client.Reconnects())

	broker.failing.Store(false)

	assert.Eventually(t, func() bool { return client.Reconnects() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, client.Connected())
}

func TestClient_ResumesConsumingAfterConnectionLoss(t *testing.T) {
	broker := &testBroker{}
	client := newTestClient(t, testConfig(), broker, NewMemoryStore())

	handled := make(chan string, 1)

	require.NoError(t, client.Subscribe(context.Background(), func(_ context.Context, payload []byte) error {
		handled <- string(payload)

		return nil
	}))

	lost := broker.current()
	require.NoError(t, lost.Close())

	assert.Eventually(t, func() bool { return client.Reconnects() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.NotSame(t, lost, broker.current())

	_, err := client.Produce(context.Background(), map[string]int{"n": 1}, WithQueue("gateways"))
	require.NoError(t, err)

	select {
	case payload := <-handled:
		assert.JSONEq(t, `{"n":1}`, payload)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer was not resumed")
	}
}

func TestClient_NoReconnectWhileClosing(t *testing.T) {
	broker := &testBroker{}
	client := newTestClient(t, testConfig(), broker, NewMemoryStore())

	require.NoError(t, client.Close(context.Background()))

	client.Reconnect(context.Background())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(0), client.Reconnects())
	assert.Equal(t, int64(1), broker.dials.Load())
}

func TestClient_FatalErrorExits(t *testing.T) {
	exits := newExitRecorder()
	broker := &testBroker{}
	client := newTestClient(t, testConfig(), broker, NewMemoryStore(), WithExit(exits.exit))

	client.NotifyError(context.Background(), errors.New("channel closed"))

	select {
	case code := <-exits.codes:
		t.Fatalf("unexpected exit with code %d", code)
	case <-time.After(50 * time.Millisecond):
	}

	client.NotifyError(context.Background(), errors.New("read tcp: connection reset by peer"))

	select {
	case code := <-exits.codes:
		assert.Equal(t, 1, code)
	case <-time.After(time.Second):
		t.Fatal("expected exit")
	}
}

func TestClient_CloseWaitsForInFlight(t *testing.T) {
	broker := &testBroker{}
	client := newTestClient(t, testConfig(), broker, NewMemoryStore())

	started := make(chan struct{})
	release := make(chan struct{})

	require.NoError(t, client.Subscribe(context.Background(), func(_ context.Context, _ []byte) error {
		close(started)
		<-release

		return nil
	}))

	require.NoError(t, broker.current().Publish("gateways", message.NewMessage("m-1", []byte(`{}`))))
	<-started

	closed := make(chan error, 1)

	go func() {
		closed <- client.Close(context.Background())
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a message was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}

	assert.Equal(t, int64(0), client.InFlight())
}

func TestClient_CloseTimeoutExits(t *testing.T) {
	cfg := testConfig()
	cfg.ShutdownTimeout = 50 * time.Millisecond

	exits := newExitRecorder()
	broker := &testBroker{}
	client := newTestClient(t, cfg, broker, NewMemoryStore(), WithExit(exits.exit))

	started := make(chan struct{})
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	require.NoError(t, client.Subscribe(context.Background(), func(_ context.Context, _ []byte) error {
		close(started)
		<-release

		return nil
	}))

	require.NoError(t, broker.current().Publish("gateways", message.NewMessage("m-1", []byte(`{}`))))
	<-started

	err := client.Close(context.Background())
	assert.ErrorIs(t, err, ErrShutdownTimeout)
	assert.Equal(t, 1, <-exits.codes)
}

func TestClient_HandlerReceivesMessageID(t *testing.T) {
	broker := &testBroker{}
	client := newTestClient(t, testConfig(), broker, NewMemoryStore())

	ids := make(chan string, 1)

	require.NoError(t, client.Subscribe(context.Background(), func(ctx context.Context, _ []byte) error {
		ids <- MessageID(ctx)

		return nil
	}))

	require.NoError(t, broker.current().Publish("gateways", message.NewMessage("m-42", []byte(`{}`))))

	select {
	case id := <-ids:
		assert.Equal(t, "m-42", id)
	case <-time.After(2 * time.Second):
		t.Fatal("message was not handled")
	}

	assert.Empty(t, MessageID(context.Background()))
}

func TestMessageID_Context(t *testing.T) {
	ctx := WithMessageID(context.Background(), "delivery-7")

	assert.Equal(t, "delivery-7", MessageID(ctx))
	assert.Equal(t, "delivery-8", MessageID(WithMessageID(ctx, "delivery-8")))
}

func TestClient_ProduceGeneratesMessageIDs(t *testing.T) {
	broker := &testBroker{}
	client := newTestClient(t, testConfig(), broker, NewMemoryStore())

	messages := subscribeRaw(t, broker.current(), "gateways-out")

	first, err := client.Produce(context.Background(), map[string]string{"n": "1"})
	require.NoError(t, err)

	second, err := client.Produce(context.Background(), map[string]string{"n": "2"})
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.ElementsMatch(t, []string{first, second}, []string{receive(t, messages).UUID, receive(t, messages).UUID})
}
