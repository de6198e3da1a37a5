// Package postgresql provides PostgreSQL persistence implementation for gateway evaluation.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/operion-gateway/pkg/models"
	"github.com/dukex/operion-gateway/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	gatewayRepo  *GatewayRepository
	workflowRepo *WorkflowRepository
	contextRepo  *ContextRepository
}

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	postgres := &Persistence{
		db:           database,
		logger:       logger,
		gatewayRepo:  NewGatewayRepository(database, logger),
		workflowRepo: NewWorkflowRepository(database, logger),
		contextRepo:  NewContextRepository(database, logger),
	}

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) GatewayTemplateByID(ctx context.Context, id int64) (*models.GatewayTemplate, error) {
	return p.gatewayRepo.TemplateByID(ctx, id)
}

func (p *Persistence) GatewayTemplates(ctx context.Context) ([]*models.GatewayTemplate, error) {
	return p.gatewayRepo.Templates(ctx)
}

func (p *Persistence) GatewayTypeByID(ctx context.Context, id int64) (*models.GatewayType, error) {
	return p.gatewayRepo.TypeByID(ctx, id)
}

func (p *Persistence) GatewayByID(ctx context.Context, id string) (*models.Gateway, error) {
	return p.gatewayRepo.GetByID(ctx, id)
}

// CreateGateway appends a new decision record.
func (p *Persistence) CreateGateway(ctx context.Context, gateway *models.Gateway) error {
	return p.gatewayRepo.Create(ctx, gateway)
}

func (p *Persistence) LatestGatewayInWorkflow(ctx context.Context, gatewayTemplateID int64, workflowID string) (*models.Gateway, error) {
	return p.gatewayRepo.LatestInWorkflow(ctx, gatewayTemplateID, workflowID)
}

func (p *Persistence) CreateWorkflowDebug(ctx context.Context, debug *models.WorkflowDebug) error {
	return p.workflowRepo.CreateDebug(ctx, debug)
}

func (p *Persistence) CreateWorkflowError(ctx context.Context, workflowError *models.WorkflowError) error {
	return p.workflowRepo.CreateError(ctx, workflowError)
}

// MarkWorkflowErrored flags the workflow instance as errored.
func (p *Persistence) MarkWorkflowErrored(ctx context.Context, workflowID string) error {
	return p.workflowRepo.MarkErrored(ctx, workflowID)
}

func (p *Persistence) WorkflowTemplateByID(ctx context.Context, id int64) (*models.WorkflowTemplate, error) {
	return p.workflowRepo.TemplateByID(ctx, id)
}

func (p *Persistence) WorkflowTemplates(ctx context.Context) ([]*models.WorkflowTemplate, error) {
	return p.workflowRepo.Templates(ctx)
}

func (p *Persistence) LastWorkflowHistory(ctx context.Context, workflowTemplateID int64) (*models.WorkflowHistory, error) {
	return p.workflowRepo.LastHistory(ctx, workflowTemplateID)
}

func (p *Persistence) DocumentsByWorkflowID(ctx context.Context, workflowID string, isCurrentOnly bool) ([]*models.Document, error) {
	return p.contextRepo.Documents(ctx, workflowID, isCurrentOnly)
}

func (p *Persistence) EventsByWorkflowID(ctx context.Context, workflowID string) ([]*models.Event, error) {
	return p.contextRepo.Events(ctx, workflowID)
}
