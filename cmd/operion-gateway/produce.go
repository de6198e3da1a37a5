package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukex/operion-gateway/pkg/cmd"
	"github.com/dukex/operion-gateway/pkg/log"
	"github.com/dukex/operion-gateway/pkg/models"
	"github.com/dukex/operion-gateway/pkg/queue"
	"github.com/go-playground/validator/v10"
	cli "github.com/urfave/cli/v3"
)

func NewProduceCommand() *cli.Command {
	return &cli.Command{
		Name:  "produce",
		Usage: "Submit a gateway evaluation request to the reading queue",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "workflow-id",
				Usage:    "Workflow instance id",
				Required: true,
			},
			&cli.IntFlag{
				Name:     "gateway-template-id",
				Usage:    "Gateway template id",
				Required: true,
			},
			&cli.IntFlag{
				Name:     "workflow-template-id",
				Usage:    "Workflow template id",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  "sequence-id",
				Usage: "Out sequence ids, in formula order",
			},
			&cli.StringFlag{
				Name:  "debug-id",
				Usage: "Record a dry run under this id instead of a gateway",
			},
			&cli.StringFlag{
				Name:  "postpone",
				Usage: "Delay queue label (10m, 1h, 2h, 8h, 1d)",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule(command.String("service-name")).With("action", "produce")

			msg := models.InboundMessage{
				WorkflowID:         command.String("workflow-id"),
				GatewayTemplateID:  int64(command.Int("gateway-template-id")),
				WorkflowTemplateID: int64(command.Int("workflow-template-id")),
				SequenceIDs:        command.StringSlice("sequence-id"),
				DebugID:            command.String("debug-id"),
			}

			err := validator.New(validator.WithRequiredStructEnabled()).Struct(&msg)
			if err != nil {
				return fmt.Errorf("invalid gateway message: %w", err)
			}

			dial, err := cmd.NewDialer(command.String("event-bus"), kafkaConfig(command), logger)
			if err != nil {
				return err
			}

			cfg := queueConfig(command)
			cfg.ShutdownTimeout = 10 * time.Second

			client, err := queue.NewClient(cfg, dial, queue.NewMemoryStore(), logger, nil)
			if err != nil {
				return err
			}

			err = client.Init(ctx)
			if err != nil {
				return fmt.Errorf("failed to connect to the broker: %w", err)
			}

			defer func() {
				err := client.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close queue client", "error", err)
				}
			}()

			opts := []queue.ProduceOption{queue.WithQueue(cfg.ReadingQueue)}
			if postpone := command.String("postpone"); postpone != "" {
				opts = []queue.ProduceOption{queue.WithPostpone(postpone)}
			}

			id, err := client.Produce(ctx, msg, opts...)
			if err != nil {
				return err
			}

			payload, _ := json.Marshal(msg)
			fmt.Fprintf(command.Root().Writer, "%s %s\n", id, payload)

			return nil
		},
	}
}
