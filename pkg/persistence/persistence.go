// Package persistence provides data storage abstraction layer for gateway evaluation.
package persistence

import (
	"context"

	"github.com/dukex/operion-gateway/pkg/models"
)

// ContextProvider supplies read-only workflow context to the decision engine.
type ContextProvider interface {
	DocumentsByWorkflowID(ctx context.Context, workflowID string, isCurrentOnly bool) ([]*models.Document, error)
	EventsByWorkflowID(ctx context.Context, workflowID string) ([]*models.Event, error)
	// LatestGatewayInWorkflow returns nil when no gateway was recorded for the pair yet.
	LatestGatewayInWorkflow(ctx context.Context, gatewayTemplateID int64, workflowID string) (*models.Gateway, error)
	// LastWorkflowHistory returns nil when the workflow template has no history.
	LastWorkflowHistory(ctx context.Context, workflowTemplateID int64) (*models.WorkflowHistory, error)
}

// GatewayStore reads gateway definitions and writes decision, debug and error records.
type GatewayStore interface {
	GatewayTemplateByID(ctx context.Context, id int64) (*models.GatewayTemplate, error)
	GatewayTemplates(ctx context.Context) ([]*models.GatewayTemplate, error)
	GatewayTypeByID(ctx context.Context, id int64) (*models.GatewayType, error)
	GatewayByID(ctx context.Context, id string) (*models.Gateway, error)
	CreateGateway(ctx context.Context, gateway *models.Gateway) error

	CreateWorkflowDebug(ctx context.Context, debug *models.WorkflowDebug) error
	CreateWorkflowError(ctx context.Context, workflowError *models.WorkflowError) error
	MarkWorkflowErrored(ctx context.Context, workflowID string) error

	WorkflowTemplateByID(ctx context.Context, id int64) (*models.WorkflowTemplate, error)
	WorkflowTemplates(ctx context.Context) ([]*models.WorkflowTemplate, error)
}

type Persistence interface {
	ContextProvider
	GatewayStore

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
