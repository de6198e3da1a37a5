package gateway

import (
	"context"
	"encoding/json"

	"github.com/dukex/operion-gateway/pkg/log"
	"github.com/dukex/operion-gateway/pkg/models"
)

// recordDebug stores the outcome of a dry run. Nothing else is written.
func (e *Engine) recordDebug(ctx context.Context, msg *models.InboundMessage, payload []byte, decision *Decision, cause error) {
	logger := log.FromContext(ctx, e.logger)

	data := models.WorkflowDebugData{QueueMessage: json.RawMessage(payload)}
	if cause != nil {
		data.Error = cause.Error()
	} else {
		data.Result = decision.Data
	}

	err := e.store.CreateWorkflowDebug(ctx, &models.WorkflowDebug{
		ID:          msg.DebugID,
		WorkflowID:  msg.WorkflowID,
		ServiceName: e.serviceName,
		Data:        data,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to record workflow debug", "debug_id", msg.DebugID, "error", err)

		return
	}

	logger.InfoContext(ctx, "Gateway dry run recorded", "debug_id", msg.DebugID, "failed", cause != nil)
}

// fail records cause, flags the workflow and notifies its error subscribers.
// Secondary failures are logged and never replace cause.
func (e *Engine) fail(ctx context.Context, msg *models.InboundMessage, payload []byte, cause error) {
	logger := log.FromContext(ctx, e.logger)
	logger.ErrorContext(ctx, "Gateway evaluation failed", "error", cause)

	err := e.store.CreateWorkflowError(ctx, &models.WorkflowError{
		WorkflowID:   msg.WorkflowID,
		ServiceName:  e.serviceName,
		Error:        cause.Error(),
		QueueMessage: json.RawMessage(payload),
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to record workflow error", "error", err)
	}

	err = e.store.MarkWorkflowErrored(ctx, msg.WorkflowID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to mark workflow as errored", "error", err)
	}

	e.notify(ctx, msg, cause)
}

func (e *Engine) notify(ctx context.Context, msg *models.InboundMessage, cause error) {
	logger := log.FromContext(ctx, e.logger)

	if e.notifier == nil {
		return
	}

	workflowTemplate, err := e.store.WorkflowTemplateByID(ctx, msg.WorkflowTemplateID)
	if err != nil {
		logger.WarnContext(ctx, "Failed to load workflow template for notification", "error", err)

		return
	}

	if len(workflowTemplate.WorkflowErrorsSubscribers) == 0 {
		return
	}

	notification := models.ErrorNotification{
		WorkflowID:                msg.WorkflowID,
		WorkflowTemplateName:      workflowTemplate.Name,
		WorkflowErrorsSubscribers: workflowTemplate.WorkflowErrorsSubscribers,
		GatewayTemplateID:         msg.GatewayTemplateID,
		Error:                     cause.Error(),
	}

	gatewayTemplate, err := e.store.GatewayTemplateByID(ctx, msg.GatewayTemplateID)
	if err == nil {
		notification.GatewayTemplateName = gatewayTemplate.Name
	}

	err = e.notifier.NotifyWorkflowError(ctx, notification)
	if err != nil {
		logger.WarnContext(ctx, "Failed to notify workflow error subscribers", "error", err)
	}
}
