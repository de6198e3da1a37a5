package file

import (
	"github.com/dukex/operion-gateway/pkg/models"
)

// SaveGatewayType seeds a gateway type.
func (fp *Persistence) SaveGatewayType(gatewayType *models.GatewayType) error {
	return fp.Save(gatewayTypesDir, int64ID(gatewayType.ID), gatewayType)
}

// SaveGatewayTemplate seeds a gateway template.
func (fp *Persistence) SaveGatewayTemplate(template *models.GatewayTemplate) error {
	return fp.Save(gatewayTemplatesDir, int64ID(template.ID), template)
}

// SaveWorkflow seeds a workflow instance.
func (fp *Persistence) SaveWorkflow(workflow *models.Workflow) error {
	return fp.Save(workflowsDir, workflow.ID, workflow)
}

// SaveWorkflowTemplate seeds a workflow template.
func (fp *Persistence) SaveWorkflowTemplate(template *models.WorkflowTemplate) error {
	return fp.Save(workflowTemplatesDir, int64ID(template.ID), template)
}

// SaveWorkflowHistory seeds a workflow history entry.
func (fp *Persistence) SaveWorkflowHistory(history *models.WorkflowHistory) error {
	return fp.Save(workflowHistoriesDir, int64ID(history.ID), history)
}

// SaveDocument seeds a workflow document.
func (fp *Persistence) SaveDocument(document *models.Document) error {
	return fp.Save(documentsDir, document.ID, document)
}

// SaveEvent seeds a workflow event.
func (fp *Persistence) SaveEvent(event *models.Event) error {
	return fp.Save(eventsDir, event.ID, event)
}

// SeedGatewayTypes writes the three standard gateway types with ids 1..3.
func (fp *Persistence) SeedGatewayTypes() error {
	for id, name := range []models.GatewayTypeName{
		models.GatewayTypeParallel,
		models.GatewayTypeExclusive,
		models.GatewayTypeInclusive,
	} {
		err := fp.SaveGatewayType(&models.GatewayType{ID: int64(id + 1), Name: name})
		if err != nil {
			return err
		}
	}

	return nil
}
