package mocks

import (
	"context"

	"github.com/dukex/operion-gateway/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) DocumentsByWorkflowID(ctx context.Context, workflowID string, isCurrentOnly bool) ([]*models.Document, error) {
	args := m.Called(ctx, workflowID, isCurrentOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Document), args.Error(1)
}

func (m *MockPersistence) EventsByWorkflowID(ctx context.Context, workflowID string) ([]*models.Event, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Event), args.Error(1)
}

func (m *MockPersistence) LatestGatewayInWorkflow(ctx context.Context, gatewayTemplateID int64, workflowID string) (*models.Gateway, error) {
	args := m.Called(ctx, gatewayTemplateID, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Gateway), args.Error(1)
}

func (m *MockPersistence) LastWorkflowHistory(ctx context.Context, workflowTemplateID int64) (*models.WorkflowHistory, error) {
	args := m.Called(ctx, workflowTemplateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowHistory), args.Error(1)
}

func (m *MockPersistence) GatewayTemplateByID(ctx context.Context, id int64) (*models.GatewayTemplate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.GatewayTemplate), args.Error(1)
}

func (m *MockPersistence) GatewayTemplates(ctx context.Context) ([]*models.GatewayTemplate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.GatewayTemplate), args.Error(1)
}

func (m *MockPersistence) GatewayTypeByID(ctx context.Context, id int64) (*models.GatewayType, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.GatewayType), args.Error(1)
}

func (m *MockPersistence) GatewayByID(ctx context.Context, id string) (*models.Gateway, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Gateway), args.Error(1)
}

func (m *MockPersistence) CreateGateway(ctx context.Context, gateway *models.Gateway) error {
	args := m.Called(ctx, gateway)

	return args.Error(0)
}

func (m *MockPersistence) CreateWorkflowDebug(ctx context.Context, debug *models.WorkflowDebug) error {
	args := m.Called(ctx, debug)

	return args.Error(0)
}

func (m *MockPersistence) CreateWorkflowError(ctx context.Context, workflowError *models.WorkflowError) error {
	args := m.Called(ctx, workflowError)

	return args.Error(0)
}

func (m *MockPersistence) MarkWorkflowErrored(ctx context.Context, workflowID string) error {
	args := m.Called(ctx, workflowID)

	return args.Error(0)
}

func (m *MockPersistence) WorkflowTemplateByID(ctx context.Context, id int64) (*models.WorkflowTemplate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowTemplate), args.Error(1)
}

func (m *MockPersistence) WorkflowTemplates(ctx context.Context) ([]*models.WorkflowTemplate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowTemplate), args.Error(1)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
