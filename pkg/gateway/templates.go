package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/operion-gateway/pkg/models"
	"github.com/dukex/operion-gateway/pkg/persistence"
	"github.com/dukex/operion-gateway/pkg/sandbox"
)

// FunctionRegistrar precompiles workflow template custom functions.
type FunctionRegistrar interface {
	RegisterTemplateFunctions(workflowTemplateID int64, sources map[string]string) error
}

// Compiler compiles expressions without running them.
type Compiler interface {
	Eval(code string, opts sandbox.Options) (*sandbox.Function, error)
}

// LoadTemplateFunctions registers the custom functions of every workflow template.
// A template with an invalid function fails the whole load.
func LoadTemplateFunctions(ctx context.Context, store persistence.GatewayStore, registrar FunctionRegistrar) (int, error) {
	templates, err := store.WorkflowTemplates(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load workflow templates: %w", err)
	}

	loaded := 0

	for _, template := range templates {
		if len(template.GlobalFunctions) == 0 {
			continue
		}

		err := registrar.RegisterTemplateFunctions(template.ID, template.GlobalFunctions)
		if err != nil {
			return loaded, fmt.Errorf("workflow template %d: %w", template.ID, err)
		}

		loaded++
	}

	return loaded, nil
}

// ValidateTemplate checks that a gateway template can be evaluated: its type exists, its
// schema is valid and, for exclusive gateways, every condition compiles.
func ValidateTemplate(ctx context.Context, store persistence.GatewayStore, compiler Compiler, template *models.GatewayTemplate) error {
	gatewayType, err := store.GatewayTypeByID(ctx, template.GatewayTypeID)
	if err != nil {
		return fmt.Errorf("failed to load gateway type %d: %w", template.GatewayTypeID, err)
	}

	if !gatewayType.Name.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownGatewayType, gatewayType.Name)
	}

	schema, err := template.ParseSchema()
	if err != nil {
		return err
	}

	if gatewayType.Name != models.GatewayTypeExclusive {
		return nil
	}

	var errs []error

	for i, formula := range schema.Formulas {
		if formula.Condition == "" {
			continue
		}

		_, err := compiler.Eval(formula.Condition, sandbox.Options{
			Caller: fmt.Sprintf("gateway template %d formula %d", template.ID, i),
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	if schema.DefaultFormulaIndex() < 0 && len(schema.Formulas) == 0 {
		errs = append(errs, ErrNoOutSequences)
	}

	return errors.Join(errs...)
}
