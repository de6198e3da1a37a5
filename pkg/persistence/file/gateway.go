package file

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/operion-gateway/pkg/models"
	"github.com/dukex/operion-gateway/pkg/persistence"
	"github.com/google/uuid"
)

var _ persistence.Persistence = (*Persistence)(nil)

func (fp *Persistence) GatewayTemplateByID(_ context.Context, id int64) (*models.GatewayTemplate, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	var template models.GatewayTemplate

	found, err := fp.read(gatewayTemplatesDir, int64ID(id), &template)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewGatewayError("GetTemplate", id, "", persistence.ErrGatewayTemplateNotFound)
	}

	return &template, nil
}

func (fp *Persistence) GatewayTemplates(_ context.Context) ([]*models.GatewayTemplate, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	return readAll[models.GatewayTemplate](fp, gatewayTemplatesDir)
}

func (fp *Persistence) GatewayTypeByID(_ context.Context, id int64) (*models.GatewayType, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	var gatewayType models.GatewayType

	found, err := fp.read(gatewayTypesDir, int64ID(id), &gatewayType)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, fmt.Errorf("gateway type %d: %w", id, persistence.ErrGatewayTypeNotFound)
	}

	return &gatewayType, nil
}

func (fp *Persistence) GatewayByID(_ context.Context, id string) (*models.Gateway, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	var gateway models.Gateway

	found, err := fp.read(gatewaysDir, id, &gateway)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, fmt.Errorf("gateway %s: %w", id, persistence.ErrGatewayNotFound)
	}

	return &gateway, nil
}

// CreateGateway appends a decision record; an existing id is rejected.
func (fp *Persistence) CreateGateway(_ context.Context, gateway *models.Gateway) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

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

	err := fp.write(gatewaysDir, gateway.ID, gateway, false)
	if isExist(err) {
		return persistence.NewGatewayError("Create", gateway.GatewayTemplateID, gateway.WorkflowID, persistence.ErrGatewayAlreadyExists)
	}

	return err
}

func (fp *Persistence) LatestGatewayInWorkflow(_ context.Context, gatewayTemplateID int64, workflowID string) (*models.Gateway, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	gateways, err := readAll[models.Gateway](fp, gatewaysDir)
	if err != nil {
		return nil, err
	}

	var latest *models.Gateway

	for _, gateway := range gateways {
		if gateway.GatewayTemplateID != gatewayTemplateID || gateway.WorkflowID != workflowID {
			continue
		}

		if latest == nil ||
			gateway.CreatedAt.After(latest.CreatedAt) ||
			(gateway.CreatedAt.Equal(latest.CreatedAt) && gateway.ID > latest.ID) {
			latest = gateway
		}
	}

	return latest, nil
}
