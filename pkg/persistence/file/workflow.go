package file

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/operion-gateway/pkg/models"
	"github.com/dukex/operion-gateway/pkg/persistence"
	"github.com/google/uuid"
)

func (fp *Persistence) CreateWorkflowDebug(_ context.Context, debug *models.WorkflowDebug) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if debug.CreatedAt.IsZero() {
		debug.CreatedAt = time.Now().UTC()
	}

	return fp.write(workflowDebugsDir, debug.ID, debug, true)
}

func (fp *Persistence) CreateWorkflowError(_ context.Context, workflowError *models.WorkflowError) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if workflowError.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow error ID: %w", err)
		}

		workflowError.ID = id.String()
	}

	if workflowError.CreatedAt.IsZero() {
		workflowError.CreatedAt = time.Now().UTC()
	}

	return fp.write(workflowErrorsDir, workflowError.ID, workflowError, false)
}

func (fp *Persistence) MarkWorkflowErrored(_ context.Context, workflowID string) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	var workflow models.Workflow

	found, err := fp.read(workflowsDir, workflowID, &workflow)
	if err != nil {
		return err
	}

	if !found {
		return fmt.Errorf("workflow %s: %w", workflowID, persistence.ErrWorkflowNotFound)
	}

	workflow.IsError = true
	workflow.UpdatedAt = time.Now().UTC()

	return fp.write(workflowsDir, workflowID, &workflow, true)
}

// WorkflowByID is used by tests and tooling to inspect the error flag.
func (fp *Persistence) WorkflowByID(_ context.Context, workflowID string) (*models.Workflow, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	var workflow models.Workflow

	found, err := fp.read(workflowsDir, workflowID, &workflow)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, persistence.ErrWorkflowNotFound)
	}

	return &workflow, nil
}

// WorkflowDebugs lists dry-run records.
func (fp *Persistence) WorkflowDebugs(_ context.Context) ([]*models.WorkflowDebug, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	return readAll[models.WorkflowDebug](fp, workflowDebugsDir)
}

// WorkflowErrors lists failure records.
func (fp *Persistence) WorkflowErrors(_ context.Context) ([]*models.WorkflowError, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	return readAll[models.WorkflowError](fp, workflowErrorsDir)
}

// Gateways lists decision records.
func (fp *Persistence) Gateways(_ context.Context) ([]*models.Gateway, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	return readAll[models.Gateway](fp, gatewaysDir)
}

func (fp *Persistence) WorkflowTemplateByID(_ context.Context, id int64) (*models.WorkflowTemplate, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	var template models.WorkflowTemplate

	found, err := fp.read(workflowTemplatesDir, int64ID(id), &template)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, fmt.Errorf("workflow template %d: %w", id, persistence.ErrWorkflowTemplateNotFound)
	}

	return &template, nil
}

func (fp *Persistence) WorkflowTemplates(_ context.Context) ([]*models.WorkflowTemplate, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	return readAll[models.WorkflowTemplate](fp, workflowTemplatesDir)
}

func (fp *Persistence) LastWorkflowHistory(_ context.Context, workflowTemplateID int64) (*models.WorkflowHistory, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	histories, err := readAll[models.WorkflowHistory](fp, workflowHistoriesDir)
	if err != nil {
		return nil, err
	}

	var last *models.WorkflowHistory

	for _, history := range histories {
		if history.WorkflowTemplateID != workflowTemplateID {
			continue
		}

		if last == nil || history.Version > last.Version {
			last = history
		}
	}

	return last, nil
}
