package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dukex/operion-gateway/pkg/models"
)

// ContextRepository reads the documents and events of a workflow instance.
type ContextRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewContextRepository creates a new context repository.
func NewContextRepository(db *sql.DB, logger *slog.Logger) *ContextRepository {
	return &ContextRepository{db: db, logger: logger}
}

// Documents returns the documents attached to the workflow's tasks and events, oldest first.
func (r *ContextRepository) Documents(ctx context.Context, workflowID string, isCurrentOnly bool) ([]*models.Document, error) {
	query := `
		SELECT
			d.id
		  , COALESCE(t.workflow_id, e.workflow_id)
		  , COALESCE(d.task_id, '')
		  , COALESCE(d.event_id, '')
		  , d.name
		  , d.data
		  , d.is_current
		  , d.created_at
		FROM documents d
		LEFT JOIN tasks t ON t.id = d.task_id
		LEFT JOIN events e ON e.id = d.event_id
		WHERE (t.workflow_id = $1 OR e.workflow_id = $1)
		  AND ($2 = false OR d.is_current = true)
		ORDER BY d.created_at, d.id
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID, isCurrentOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	documents := make([]*models.Document, 0)

	for rows.Next() {
		var (
			document models.Document
			dataJSON []byte
		)

		err := rows.Scan(
			&document.ID,
			&document.WorkflowID,
			&document.TaskID,
			&document.EventID,
			&document.Name,
			&dataJSON,
			&document.IsCurrent,
			&document.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}

		err = json.Unmarshal(dataJSON, &document.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal document %s data: %w", document.ID, err)
		}

		documents = append(documents, &document)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return documents, nil
}

// Events returns the events of the workflow, oldest first.
func (r *ContextRepository) Events(ctx context.Context, workflowID string) ([]*models.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workflow_id, name, data, created_at
		FROM events
		WHERE workflow_id = $1
		ORDER BY created_at, id
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	events := make([]*models.Event, 0)

	for rows.Next() {
		var (
			event    models.Event
			dataJSON []byte
		)

		err := rows.Scan(&event.ID, &event.WorkflowID, &event.Name, &dataJSON, &event.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		err = json.Unmarshal(dataJSON, &event.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal event %s data: %w", event.ID, err)
		}

		events = append(events, &event)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}
