package main

import (
	"github.com/dukex/operion-gateway/pkg/channels/kafka"
	"github.com/dukex/operion-gateway/pkg/queue"
	"github.com/dukex/operion-gateway/pkg/sandbox"
	cli "github.com/urfave/cli/v3"
)

func queueConfig(command *cli.Command) queue.Config {
	cfg := queue.DefaultConfig(command.String("reading-queue"), command.String("writing-queue"))
	cfg.ErrorsQueues = command.Bool("errors-queues")
	cfg.MaxHandlingMessages = command.Int("max-handling-messages")
	cfg.WIPTTL = command.Duration("wip-ttl")
	cfg.DoneTTL = command.Duration("done-ttl")
	cfg.ReconnectDelay = command.Duration("reconnect-delay")
	cfg.ShutdownTimeout = command.Duration("shutdown-timeout")
	cfg.ShutdownPollInterval = command.Duration("shutdown-poll-interval")
	cfg.FatalErrors = command.StringSlice("fatal-errors")

	return cfg
}

func kafkaConfig(command *cli.Command) kafka.Config {
	return kafka.Config{
		Brokers:      command.StringSlice("kafka-brokers"),
		ServiceName:  command.String("service-name"),
		ErrorsQueues: command.Bool("errors-queues"),
		OTELEnabled:  command.Bool("otel-enabled"),
	}
}

func sandboxConfig(command *cli.Command) sandbox.Config {
	cfg := sandbox.DefaultConfig()
	cfg.Namespace = command.String("sandbox-namespace")
	cfg.CacheSize = command.Int("sandbox-cache-size")
	cfg.Timeout = command.Duration("sandbox-timeout")

	return cfg
}
