package main

import (
	"context"
	"os"

	"github.com/dukex/operion-gateway/pkg/notification"
	"github.com/dukex/operion-gateway/pkg/queue"
	"github.com/dukex/operion-gateway/pkg/sandbox"
	cli "github.com/urfave/cli/v3"
)

const defaultServiceName = "operion-gateway"

func main() {
	err := newApp().Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func newApp() *cli.Command {
	queueDefaults := queue.DefaultConfig("", "")
	sandboxDefaults := sandbox.DefaultConfig()

	return &cli.Command{
		Name:                  "operion-gateway",
		Usage:                 "Resolve workflow gateways from the evaluation queue",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewRunCommand(),
			NewValidateCommand(),
			NewProduceCommand(),
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL for persistence (postgres://... or file://dir)",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka broker addresses",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for message markers (in memory when empty)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "reading-queue",
				Usage:   "Queue of gateway evaluation requests",
				Value:   "gateway",
				Sources: cli.EnvVars("READING_QUEUE"),
			},
			&cli.StringFlag{
				Name:    "writing-queue",
				Usage:   "Queue of gateway results",
				Value:   "gateway-results",
				Sources: cli.EnvVars("WRITING_QUEUE"),
			},
			&cli.StringFlag{
				Name:    "notifications-topic",
				Usage:   "Topic of workflow error notifications (logged only when empty)",
				Value:   notification.DefaultTopic,
				Sources: cli.EnvVars("NOTIFICATIONS_TOPIC"),
			},
			&cli.BoolFlag{
				Name:    "errors-queues",
				Usage:   "Enable the delay queues",
				Value:   queueDefaults.ErrorsQueues,
				Sources: cli.EnvVars("ERRORS_QUEUES"),
			},
			&cli.IntFlag{
				Name:    "max-handling-messages",
				Usage:   "Messages handled concurrently",
				Value:   queueDefaults.MaxHandlingMessages,
				Sources: cli.EnvVars("MAX_HANDLING_MESSAGES"),
			},
			&cli.DurationFlag{
				Name:    "wip-ttl",
				Usage:   "Lifetime of the work-in-progress marker",
				Value:   queueDefaults.WIPTTL,
				Sources: cli.EnvVars("WIP_TTL"),
			},
			&cli.DurationFlag{
				Name:    "done-ttl",
				Usage:   "Lifetime of the done marker",
				Value:   queueDefaults.DoneTTL,
				Sources: cli.EnvVars("DONE_TTL"),
			},
			&cli.DurationFlag{
				Name:    "reconnect-delay",
				Usage:   "Delay before reconnecting to the broker",
				Value:   queueDefaults.ReconnectDelay,
				Sources: cli.EnvVars("RECONNECT_DELAY"),
			},
			&cli.DurationFlag{
				Name:    "shutdown-timeout",
				Usage:   "Maximum wait for in-flight messages on shutdown",
				Value:   queueDefaults.ShutdownTimeout,
				Sources: cli.EnvVars("SHUTDOWN_TIMEOUT"),
			},
			&cli.DurationFlag{
				Name:    "shutdown-poll-interval",
				Usage:   "Interval between in-flight checks on shutdown",
				Value:   queueDefaults.ShutdownPollInterval,
				Sources: cli.EnvVars("SHUTDOWN_POLL_INTERVAL"),
			},
			&cli.StringSliceFlag{
				Name:    "fatal-errors",
				Usage:   "Broker error substrings that terminate the process",
				Value:   queueDefaults.FatalErrors,
				Sources: cli.EnvVars("FATAL_ERRORS"),
			},
			&cli.StringFlag{
				Name:    "sandbox-namespace",
				Usage:   "Global object exposing helper functions to expressions",
				Value:   sandboxDefaults.Namespace,
				Sources: cli.EnvVars("SANDBOX_NAMESPACE"),
			},
			&cli.IntFlag{
				Name:    "sandbox-cache-size",
				Usage:   "Compiled expressions kept in memory",
				Value:   sandboxDefaults.CacheSize,
				Sources: cli.EnvVars("SANDBOX_CACHE_SIZE"),
			},
			&cli.DurationFlag{
				Name:    "sandbox-timeout",
				Usage:   "Maximum run time of one expression",
				Value:   sandboxDefaults.Timeout,
				Sources: cli.EnvVars("SANDBOX_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "service-name",
				Usage:   "Service name recorded on gateways and errors",
				Value:   defaultServiceName,
				Sources: cli.EnvVars("SERVICE_NAME"),
			},
			&cli.IntFlag{
				Name:    "http-port",
				Usage:   "Port of the health endpoints",
				Value:   9090,
				Sources: cli.EnvVars("HTTP_PORT"),
			},
			&cli.StringFlag{
				Name:    "heartbeat-schedule",
				Usage:   "Cron schedule of the queue heartbeat log",
				Value:   queue.DefaultHeartbeatSchedule,
				Sources: cli.EnvVars("HEARTBEAT_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Export traces over OTLP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: runAction,
	}
}
