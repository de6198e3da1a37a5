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
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// GatewayRepository handles gateway-related database operations.
type GatewayRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewGatewayRepository creates a new gateway repository.
func NewGatewayRepository(db *sql.DB, logger *slog.Logger) *GatewayRepository {
	return &GatewayRepository{db: db, logger: logger}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *GatewayRepository) TemplateByID(ctx context.Context, id int64) (*models.GatewayTemplate, error) {
	query := `
		SELECT
			id
		  , gateway_type_id
		  , name
		  , description
		  , schema_text
		FROM gateway_templates
		WHERE id = $1
	`

	var template models.GatewayTemplate

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&template.ID,
		&template.GatewayTypeID,
		&template.Name,
		&template.Description,
		&template.SchemaText,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewGatewayError("GetTemplate", id, "", persistence.ErrGatewayTemplateNotFound)
		}

		return nil, fmt.Errorf("failed to scan gateway template: %w", err)
	}

	return &template, nil
}

func (r *GatewayRepository) Templates(ctx context.Context) ([]*models.GatewayTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, gateway_type_id, name, description, schema_text
		FROM gateway_templates
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query gateway templates: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	templates := make([]*models.GatewayTemplate, 0)

	for rows.Next() {
		var template models.GatewayTemplate

		err := rows.Scan(&template.ID, &template.GatewayTypeID, &template.Name, &template.Description, &template.SchemaText)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gateway template: %w", err)
		}

		templates = append(templates, &template)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating gateway templates: %w", err)
	}

	return templates, nil
}

func (r *GatewayRepository) TypeByID(ctx context.Context, id int64) (*models.GatewayType, error) {
	var gatewayType models.GatewayType

	err := r.db.QueryRowContext(ctx, "SELECT id, name FROM gateway_types WHERE id = $1", id).
		Scan(&gatewayType.ID, &gatewayType.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("gateway type %d: %w", id, persistence.ErrGatewayTypeNotFound)
		}

		return nil, fmt.Errorf("failed to scan gateway type: %w", err)
	}

	return &gatewayType, nil
}

func (r *GatewayRepository) GetByID(ctx context.Context, id string) (*models.Gateway, error) {
	query := `
		SELECT id, gateway_template_id, gateway_type_id, workflow_id, name, data, version, created_by, updated_by, created_at
		FROM gateways
		WHERE id = $1
	`

	gateway, err := r.scanGateway(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("gateway %s: %w", id, persistence.ErrGatewayNotFound)
		}

		return nil, err
	}

	return gateway, nil
}

// LatestInWorkflow returns the most recent gateway for the pair, or nil.
func (r *GatewayRepository) LatestInWorkflow(ctx context.Context, gatewayTemplateID int64, workflowID string) (*models.Gateway, error) {
	query := `
		SELECT id, gateway_template_id, gateway_type_id, workflow_id, name, data, version, created_by, updated_by, created_at
		FROM gateways
		WHERE gateway_template_id = $1 AND workflow_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	gateway, err := r.scanGateway(r.db.QueryRowContext(ctx, query, gatewayTemplateID, workflowID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return gateway, nil
}

// Create inserts a gateway. Rows are never updated afterwards.
func (r *GatewayRepository) Create(ctx context.Context, gateway *models.Gateway) error {
	if gateway.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate gateway ID: %w", err)
		}

		gateway.ID = id.String()
	}

	if gateway.CreatedAt.IsZero() {
		gateway.CreatedAt = time.Now().UTC()
	}

	dataJSON, err := json.Marshal(gateway.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway data: %w", err)
	}

	query := `
		INSERT INTO gateways (id, gateway_template_id, gateway_type_id, workflow_id, name, data, version, created_by, updated_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		gateway.ID,
		gateway.GatewayTemplateID,
		gateway.GatewayTypeID,
		gateway.WorkflowID,
		gateway.Name,
		dataJSON,
		gateway.Version,
		gateway.CreatedBy,
		gateway.UpdatedBy,
		gateway.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.NewGatewayError("Create", gateway.GatewayTemplateID, gateway.WorkflowID, persistence.ErrGatewayAlreadyExists)
		}

		return fmt.Errorf("failed to insert gateway: %w", err)
	}

	return nil
}

func (r *GatewayRepository) scanGateway(row rowScanner) (*models.Gateway, error) {
	var (
		gateway  models.Gateway
		dataJSON []byte
	)

	err := row.Scan(
		&gateway.ID,
		&gateway.GatewayTemplateID,
		&gateway.GatewayTypeID,
		&gateway.WorkflowID,
		&gateway.Name,
		&dataJSON,
		&gateway.Version,
		&gateway.CreatedBy,
		&gateway.UpdatedBy,
		&gateway.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan gateway: %w", err)
	}

	err = json.Unmarshal(dataJSON, &gateway.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal gateway data: %w", err)
	}

	return &gateway, nil
}
