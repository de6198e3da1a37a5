package gateway

import (
	"context"
	"fmt"

	"github.com/dukex/operion-gateway/pkg/models"
	"github.com/dukex/operion-gateway/pkg/sandbox"
)

// Evaluator runs condition expressions.
type Evaluator interface {
	EvalWithArgs(ctx context.Context, code string, args []any, opts sandbox.Options) (any, error)
}

// Input is everything a decision algorithm sees.
type Input struct {
	GatewayTemplateID  int64
	WorkflowTemplateID int64
	GatewayType        models.GatewayTypeName
	Schema             *models.GatewaySchema
	SequenceIDs        []string
	Documents          []*models.Document
	Events             []*models.Event
}

// Decide runs the algorithm of the gateway type.
func Decide(ctx context.Context, evaluator Evaluator, input Input) (models.GatewayData, error) {
	sequenceIDs := input.SequenceIDs
	if sequenceIDs == nil {
		sequenceIDs = []string{}
	}

	switch input.GatewayType {
	case models.GatewayTypeParallel, models.GatewayTypeInclusive:
		return passThrough(sequenceIDs), nil
	case models.GatewayTypeExclusive:
		return decideExclusive(ctx, evaluator, input, sequenceIDs)
	default:
		return models.GatewayData{}, fmt.Errorf("%w: %q", ErrUnknownGatewayType, input.GatewayType)
	}
}

func passThrough(sequenceIDs []string) models.GatewayData {
	resultSequences := make([]string, len(sequenceIDs))
	copy(resultSequences, sequenceIDs)

	return models.GatewayData{
		SequenceIDs:     sequenceIDs,
		ResultSequences: resultSequences,
	}
}

// decideExclusive evaluates the non-default formulas in declared order and stops at the
// first truthy condition. Without a match the default formula is used.
func decideExclusive(ctx context.Context, evaluator Evaluator, input Input, sequenceIDs []string) (models.GatewayData, error) {
	var formulas []models.Formula
	if input.Schema != nil {
		formulas = input.Schema.Formulas
	}

	args := []any{input.Documents, input.Events}

	for i, formula := range formulas {
		if formula.IsDefault {
			continue
		}

		result, err := evaluator.EvalWithArgs(ctx, formula.Condition, args, sandbox.Options{
			Caller:             fmt.Sprintf("gateway template %d formula %d", input.GatewayTemplateID, i),
			WorkflowTemplateID: input.WorkflowTemplateID,
		})
		if err != nil {
			return models.GatewayData{}, fmt.Errorf("failed to evaluate formula %d: %w", i, err)
		}

		if sandbox.Truthy(result) {
			return selectFormula(formulas, sequenceIDs, i, false)
		}
	}

	defaultIndex := -1
	if input.Schema != nil {
		defaultIndex = input.Schema.DefaultFormulaIndex()
	}

	if defaultIndex < 0 {
		return models.GatewayData{}, ErrNoOutSequences
	}

	return selectFormula(formulas, sequenceIDs, defaultIndex, true)
}

func selectFormula(formulas []models.Formula, sequenceIDs []string, index int, handledAsDefault bool) (models.GatewayData, error) {
	if index >= len(sequenceIDs) {
		return models.GatewayData{}, fmt.Errorf("%w: formula %d of %d sequence ids", ErrFormulaWithoutSequence, index, len(sequenceIDs))
	}

	return models.GatewayData{
		SequenceIDs:      sequenceIDs,
		ResultSequence:   sequenceIDs[index],
		Condition:        formulas[index].Condition,
		HandledAsDefault: &handledAsDefault,
	}, nil
}
