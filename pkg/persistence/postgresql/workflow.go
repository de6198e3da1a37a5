package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/operion-gateway/pkg/models"
	"github.com/dukex/operion-gateway/pkg/persistence"
	"github.com/google/uuid"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// MarkErrored sets the error flag of a workflow instance.
func (r *WorkflowRepository) MarkErrored(ctx context.Context, workflowID string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE workflows SET is_error = true, updated_at = $2 WHERE id = $1",
		workflowID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark workflow %s as errored: %w", workflowID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("workflow %s: %w", workflowID, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *WorkflowRepository) TemplateByID(ctx context.Context, id int64) (*models.WorkflowTemplate, error) {
	query := `
		SELECT id, name, workflow_errors_subscribers, global_functions
		FROM workflow_templates
		WHERE id = $1
	`

	template, err := r.scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("workflow template %d: %w", id, persistence.ErrWorkflowTemplateNotFound)
		}

		return nil, err
	}

	return template, nil
}

func (r *WorkflowRepository) Templates(ctx context.Context) ([]*models.WorkflowTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, workflow_errors_subscribers, global_functions
		FROM workflow_templates
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow templates: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	templates := make([]*models.WorkflowTemplate, 0)

	for rows.Next() {
		template, err := r.scanTemplate(rows)
		if err != nil {
			return nil, err
		}

		templates = append(templates, template)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflow templates: %w", err)
	}

	return templates, nil
}

// LastHistory returns the highest version recorded for the template, or nil.
func (r *WorkflowRepository) LastHistory(ctx context.Context, workflowTemplateID int64) (*models.WorkflowHistory, error) {
	query := `
		SELECT id, workflow_template_id, version, created_at
		FROM workflow_histories
		WHERE workflow_template_id = $1
		ORDER BY version DESC
		LIMIT 1
	`

	var history models.WorkflowHistory

	err := r.db.QueryRowContext(ctx, query, workflowTemplateID).Scan(
		&history.ID,
		&history.WorkflowTemplateID,
		&history.Version,
		&history.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan workflow history: %w", err)
	}

	return &history, nil
}

func (r *WorkflowRepository) CreateDebug(ctx context.Context, debug *models.WorkflowDebug) error {
	if debug.CreatedAt.IsZero() {
		debug.CreatedAt = time.Now().UTC()
	}

	dataJSON, err := json.Marshal(debug.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow debug data: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflow_debugs (id, workflow_id, service_name, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			data = EXCLUDED.data,
			created_at = EXCLUDED.created_at
	`, debug.ID, debug.WorkflowID, debug.ServiceName, dataJSON, debug.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert workflow debug: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) CreateError(ctx context.Context, workflowError *models.WorkflowError) error {
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

	var queueMessage any
	if json.Valid(workflowError.QueueMessage) {
		queueMessage = []byte(workflowError.QueueMessage)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO workflow_errors (id, workflow_id, service_name, error, queue_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		workflowError.ID,
		workflowError.WorkflowID,
		workflowError.ServiceName,
		workflowError.Error,
		queueMessage,
		workflowError.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert workflow error: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) scanTemplate(row rowScanner) (*models.WorkflowTemplate, error) {
	var (
		template        models.WorkflowTemplate
		subscribersJSON []byte
		functionsJSON   []byte
	)

	err := row.Scan(&template.ID, &template.Name, &subscribersJSON, &functionsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan workflow template: %w", err)
	}

	err = json.Unmarshal(subscribersJSON, &template.WorkflowErrorsSubscribers)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow errors subscribers: %w", err)
	}

	err = json.Unmarshal(functionsJSON, &template.GlobalFunctions)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal global functions: %w", err)
	}

	return &template, nil
}
