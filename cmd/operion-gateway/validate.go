package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/operion-gateway/pkg/cmd"
	"github.com/dukex/operion-gateway/pkg/gateway"
	"github.com/dukex/operion-gateway/pkg/log"
	"github.com/dukex/operion-gateway/pkg/sandbox"
	cli "github.com/urfave/cli/v3"
)

var errInvalidTemplates = errors.New("invalid gateway templates")

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate gateway templates and workflow template functions",
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule(command.String("service-name")).With("action", "validate")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			evaluator, err := sandbox.New(sandboxConfig(command), logger)
			if err != nil {
				return err
			}

			w := command.Root().Writer

			loaded, err := gateway.LoadTemplateFunctions(ctx, persistence, evaluator)
			if err != nil {
				fmt.Fprintf(w, "❌ Workflow template functions: %v\n", err)

				return err
			}

			fmt.Fprintf(w, "Workflow templates with functions: %d\n", loaded)

			templates, err := persistence.GatewayTemplates(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch gateway templates: %w", err)
			}

			fmt.Fprintln(w, "Gateway Template Validation Results:")
			fmt.Fprintln(w, "====================================")

			invalid := 0

			for _, template := range templates {
				err := gateway.ValidateTemplate(ctx, persistence, evaluator, template)
				if err != nil {
					invalid++

					fmt.Fprintf(w, "  ❌ %s (%d): %v\n", template.Name, template.ID, err)

					continue
				}

				fmt.Fprintf(w, "  ✅ %s (%d)\n", template.Name, template.ID)
			}

			fmt.Fprintf(w, "\nValid: %d, Invalid: %d\n", len(templates)-invalid, invalid)

			if invalid > 0 {
				return fmt.Errorf("%w: %d", errInvalidTemplates, invalid)
			}

			return nil
		},
	}
}
