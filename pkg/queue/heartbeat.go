package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/robfig/cron/v3"
)

// DefaultHeartbeatSchedule logs the client state every minute.
const DefaultHeartbeatSchedule = "@every 1m"

// Heartbeat periodically logs the connection state and counters of a Client.
type Heartbeat struct {
	client *Client
	logger *slog.Logger
	cron   *cron.Cron
	beats  atomic.Int64
}

func NewHeartbeat(client *Client, schedule string, logger *slog.Logger) (*Heartbeat, error) {
	if schedule == "" {
		schedule = DefaultHeartbeatSchedule
	}

	logger = logger.With("module", "heartbeat")
	cronLog := cronLogger{logger: logger}

	heartbeat := &Heartbeat{
		client: client,
		logger: logger,
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(
				cron.SkipIfStillRunning(cronLog),
				cron.Recover(cronLog),
			),
		),
	}

	_, err := heartbeat.cron.AddFunc(schedule, heartbeat.beat)
	if err != nil {
		return nil, fmt.Errorf("invalid heartbeat schedule %q: %w", schedule, err)
	}

	return heartbeat, nil
}

func (h *Heartbeat) Start() {
	h.cron.Start()
}

// Stop stops the schedule and waits for a running beat.
func (h *Heartbeat) Stop() {
	<-h.cron.Stop().Done()
}

// Beats returns how many beats ran.
func (h *Heartbeat) Beats() int64 {
	return h.beats.Load()
}

func (h *Heartbeat) beat() {
	h.beats.Add(1)

	h.logger.InfoContext(context.Background(), "Queue heartbeat",
		"connected", h.client.Connected(),
		"in_flight", h.client.InFlight(),
		"reconnects", h.client.Reconnects(),
	)
}

// cronLogger routes the scheduler's own logs to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
