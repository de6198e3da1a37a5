package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/dukex/operion-gateway/pkg/mocks"
	"github.com/dukex/operion-gateway/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func exclusiveInput(formulas []models.Formula, sequenceIDs []string) Input {
	return Input{
		GatewayTemplateID:  10,
		WorkflowTemplateID: 1,
		GatewayType:        models.GatewayTypeExclusive,
		Schema:             &models.GatewaySchema{Formulas: formulas},
		SequenceIDs:        sequenceIDs,
	}
}

func TestDecide_ExclusiveFirstMatchWins(t *testing.T) {
	evaluator := &mocks.MockEvaluator{}
	evaluator.On("EvalWithArgs", mock.Anything, "c0", mock.Anything, mock.Anything).Return(false, nil).Once()
	evaluator.On("EvalWithArgs", mock.Anything, "c1", mock.Anything, mock.Anything).Return(true, nil).Once()

	data, err := Decide(context.Background(), evaluator, exclusiveInput([]models.Formula{
		{Condition: "c0"},
		{Condition: "c1"},
		{Condition: "c2"},
	}, []string{"s0", "s1", "s2"}))
	require.NoError(t, err)

	assert.Equal(t, "s1", data.ResultSequence)
	assert.Equal(t, "c1", data.Condition)
	require.NotNil(t, data.HandledAsDefault)
	assert.False(t, *data.HandledAsDefault)
	assert.Equal(t, []string{"s0", "s1", "s2"}, data.SequenceIDs)
	assert.Nil(t, data.ResultSequences)

	evaluator.AssertExpectations(t)
	evaluator.AssertNotCalled(t, "EvalWithArgs", mock.Anything, "c2", mock.Anything, mock.Anything)
}

func TestDecide_ExclusiveEvaluatesInDeclaredOrder(t *testing.T) {
	var order []string

	evaluator := &mocks.MockEvaluator{}
	evaluator.On("EvalWithArgs", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			order = append(order, args.String(1))
		}).
		Return(int64(0), nil)

	_, err := Decide(context.Background(), evaluator, exclusiveInput([]models.Formula{
		{Condition: "c0"},
		{Condition: "c1"},
		{Condition: "fallback", IsDefault: true},
		{Condition: "c3"},
	}, []string{"s0", "s1", "s2", "s3"}))
	require.NoError(t, err)

	assert.Equal(t, []string{"c0", "c1", "c3"}, order)
}

func TestDecide_ExclusiveDefaultFallback(t *testing.T) {
	evaluator := &mocks.MockEvaluator{}
	evaluator.On("EvalWithArgs", mock.Anything, "c0", mock.Anything, mock.Anything).Return(nil, nil)

	data, err := Decide(context.Background(), evaluator, exclusiveInput([]models.Formula{
		{Condition: "c0"},
		{Condition: "() => true", IsDefault: true},
	}, []string{"s0", "s1"}))
	require.NoError(t, err)

	assert.Equal(t, "s1", data.ResultSequence)
	require.NotNil(t, data.HandledAsDefault)
	assert.True(t, *data.HandledAsDefault)

	evaluator.AssertNotCalled(t, "EvalWithArgs", mock.Anything, "() => true", mock.Anything, mock.Anything)
}

func TestDecide_ExclusiveWithoutOutSequences(t *testing.T) {
	evaluator := &mocks.MockEvaluator{}
	evaluator.On("EvalWithArgs", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", nil)

	_, err := Decide(context.Background(), evaluator, exclusiveInput([]models.Formula{
		{Condition: "c0"},
	}, []string{"s0"}))
	require.ErrorIs(t, err, ErrNoOutSequences)
	assert.Equal(t, "Gateway without any out sequences.", err.Error())

	_, err = Decide(context.Background(), evaluator, Input{GatewayType: models.GatewayTypeExclusive})
	assert.ErrorIs(t, err, ErrNoOutSequences)
}

func TestDecide_ExclusiveTruthiness(t *testing.T) {
	evaluator := &mocks.MockEvaluator{}
	evaluator.On("EvalWithArgs", mock.Anything, "zero", mock.Anything, mock.Anything).Return(int64(0), nil)
	evaluator.On("EvalWithArgs", mock.Anything, "text", mock.Anything, mock.Anything).Return("yes", nil)

	data, err := Decide(context.Background(), evaluator, exclusiveInput([]models.Formula{
		{Condition: "zero"},
		{Condition: "text"},
	}, []string{"s0", "s1"}))
	require.NoError(t, err)
	assert.Equal(t, "s1", data.ResultSequence)
}

func TestDecide_ExclusiveEvaluationError(t *testing.T) {
	boom := errors.New("boom")

	evaluator := &mocks.MockEvaluator{}
	evaluator.On("EvalWithArgs", mock.Anything, "c0", mock.Anything, mock.Anything).Return(nil, boom)

	_, err := Decide(context.Background(), evaluator, exclusiveInput([]models.Formula{
		{Condition: "c0"},
		{Condition: "c1", IsDefault: true},
	}, []string{"s0", "s1"}))
	assert.ErrorIs(t, err, boom)
}

func TestDecide_ExclusiveFormulaWithoutSequence(t *testing.T) {
	evaluator := &mocks.MockEvaluator{}
	evaluator.On("EvalWithArgs", mock.Anything, "c0", mock.Anything, mock.Anything).Return(false, nil)

	_, err := Decide(context.Background(), evaluator, exclusiveInput([]models.Formula{
		{Condition: "c0"},
		{Condition: "c1", IsDefault: true},
	}, []string{"s0"}))
	assert.ErrorIs(t, err, ErrFormulaWithoutSequence)
}

func TestDecide_ExclusivePassesDocumentsAndEvents(t *testing.T) {
	documents := []*models.Document{{ID: "d1", Name: "approval"}}
	events := []*models.Event{{ID: "e1", Name: "submitted"}}

	evaluator := &mocks.MockEvaluator{}
	evaluator.On("EvalWithArgs", mock.Anything, "c0", []any{documents, events}, mock.Anything).Return(true, nil)

	input := exclusiveInput([]models.Formula{{Condition: "c0"}}, []string{"s0"})
	input.Documents = documents
	input.Events = events

	data, err := Decide(context.Background(), evaluator, input)
	require.NoError(t, err)
	assert.Equal(t, "s0", data.ResultSequence)
	evaluator.AssertExpectations(t)
}

func TestDecide_PassThrough(t *testing.T) {
	for _, gatewayType := range []models.GatewayTypeName{models.GatewayTypeParallel, models.GatewayTypeInclusive} {
		t.Run(string(gatewayType), func(t *testing.T) {
			evaluator := &mocks.MockEvaluator{}

			data, err := Decide(context.Background(), evaluator, Input{
				GatewayType: gatewayType,
				Schema:      &models.GatewaySchema{Formulas: []models.Formula{{Condition: "() => false"}}},
				SequenceIDs: []string{"b", "a", "b"},
			})
			require.NoError(t, err)

			assert.Equal(t, []string{"b", "a", "b"}, data.ResultSequences)
			assert.Equal(t, []string{"b", "a", "b"}, data.SequenceIDs)
			assert.Empty(t, data.ResultSequence)
			assert.Nil(t, data.HandledAsDefault)

			evaluator.AssertNotCalled(t, "EvalWithArgs", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

			empty, err := Decide(context.Background(), evaluator, Input{GatewayType: gatewayType})
			require.NoError(t, err)
			assert.Equal(t, []string{}, empty.ResultSequences)
		})
	}
}

func TestDecide_UnknownGatewayType(t *testing.T) {
	_, err := Decide(context.Background(), &mocks.MockEvaluator{}, Input{GatewayType: "event-based"})
	assert.ErrorIs(t, err, ErrUnknownGatewayType)
}
