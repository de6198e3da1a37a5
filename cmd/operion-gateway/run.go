package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/dukex/operion-gateway/pkg/cmd"
	"github.com/dukex/operion-gateway/pkg/gateway"
	"github.com/dukex/operion-gateway/pkg/log"
	"github.com/dukex/operion-gateway/pkg/notification"
	"github.com/dukex/operion-gateway/pkg/otelhelper"
	"github.com/dukex/operion-gateway/pkg/queue"
	"github.com/dukex/operion-gateway/pkg/sandbox"
	"github.com/dukex/operion-gateway/pkg/web"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Consume gateway evaluation requests",
		Action: runAction,
	}
}

func runAction(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	serviceName := command.String("service-name")
	logger := log.WithModule(serviceName)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, shutdownTracer, err := newTracer(ctx, command, serviceName)
	if err != nil {
		return err
	}

	defer func() {
		err := shutdownTracer(context.WithoutCancel(ctx))
		if err != nil {
			logger.Error("Failed to shutdown tracer provider", "error", err)
		}
	}()

	logger.InfoContext(ctx, "Initializing gateway service")

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := persistence.Close(context.WithoutCancel(ctx))
		if err != nil {
			logger.Error("Failed to close persistence", "error", err)
		}
	}()

	idem, closeIdem, err := cmd.NewIdempotencyStore(ctx, logger, command.String("redis-url"), serviceName)
	if err != nil {
		return err
	}

	defer func() {
		err := closeIdem()
		if err != nil {
			logger.Error("Failed to close idempotency store", "error", err)
		}
	}()

	dial, err := cmd.NewDialer(command.String("event-bus"), kafkaConfig(command), logger)
	if err != nil {
		return err
	}

	client, err := queue.NewClient(queueConfig(command), dial, idem, logger, tracer)
	if err != nil {
		return err
	}

	err = client.Init(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to the broker: %w", err)
	}

	evaluator, err := sandbox.New(sandboxConfig(command), logger)
	if err != nil {
		return err
	}

	loaded, err := gateway.LoadTemplateFunctions(ctx, persistence, evaluator)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "Workflow template functions loaded", "templates", loaded)

	engine := gateway.NewEngine(gateway.Dependencies{
		Store:       persistence,
		Context:     persistence,
		Evaluator:   evaluator,
		Producer:    client,
		Notifier:    newNotifier(client, command.String("notifications-topic"), logger),
		Logger:      logger,
		Tracer:      tracer,
		ServiceName: serviceName,
	})

	err = client.Subscribe(ctx, engine.Handle)
	if err != nil {
		return err
	}

	heartbeat, err := queue.NewHeartbeat(client, command.String("heartbeat-schedule"), logger)
	if err != nil {
		return err
	}

	heartbeat.Start()
	defer heartbeat.Stop()

	server := web.NewServer(logger, map[string]web.Probe{
		"persistence": persistence.HealthCheck,
		"queue": func(context.Context) error {
			if !client.Connected() {
				return queue.ErrNotConnected
			}

			return nil
		},
	})

	go func() {
		err := server.Start(command.Int("http-port"))
		if err != nil {
			logger.Error("Health server stopped", "error", err)
		}
	}()

	logger.InfoContext(ctx, "Gateway service started", "reading_queue", command.String("reading-queue"))

	<-ctx.Done()

	logger.Info("Shutting down gracefully...")

	shutdownCtx := context.WithoutCancel(ctx)

	err = server.Shutdown(shutdownCtx)
	if err != nil {
		logger.Error("Failed to stop health server", "error", err)
	}

	return client.Close(shutdownCtx)
}

func newTracer(ctx context.Context, command *cli.Command, serviceName string) (trace.Tracer, func(context.Context) error, error) {
	if !command.Bool("otel-enabled") {
		return otelhelper.NoopTracer(), func(context.Context) error { return nil }, nil
	}

	tracer, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	return tracer, shutdown, nil
}

func newNotifier(producer notification.Producer, topic string, logger *slog.Logger) gateway.Notifier {
	if topic == "" {
		return notification.NewLogNotifier(logger)
	}

	return notification.NewQueueNotifier(producer, topic, logger)
}
