package mocks

import (
	"context"

	"github.com/dukex/operion-gateway/pkg/models"
	"github.com/dukex/operion-gateway/pkg/queue"
	"github.com/dukex/operion-gateway/pkg/sandbox"
	"github.com/stretchr/testify/mock"
)

// MockEvaluator is a mock implementation of gateway.Evaluator interface.
type MockEvaluator struct {
	mock.Mock
}

func (m *MockEvaluator) EvalWithArgs(ctx context.Context, code string, args []any, opts sandbox.Options) (any, error) {
	called := m.Called(ctx, code, args, opts)

	return called.Get(0), called.Error(1)
}

// MockProducer is a mock implementation of gateway.Producer interface.
type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Produce(ctx context.Context, payload any, opts ...queue.ProduceOption) (string, error) {
	args := m.Called(ctx, payload)

	return args.String(0), args.Error(1)
}

// MockNotifier is a mock implementation of gateway.Notifier interface.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyWorkflowError(ctx context.Context, notification models.ErrorNotification) error {
	args := m.Called(ctx, notification)

	return args.Error(0)
}
