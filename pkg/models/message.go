package models

// InboundMessage requests the evaluation of one gateway.
type InboundMessage struct {
	WorkflowID         string   `json:"workflowId"            validate:"required"`
	GatewayTemplateID  int64    `json:"gatewayTemplateId"     validate:"required"`
	SequenceIDs        []string `json:"sequenceIds,omitempty"`
	WorkflowTemplateID int64    `json:"workflowTemplateId"    validate:"required"`
	DebugID            string   `json:"debugId,omitempty"`
}

// IsDebug reports whether the message is a dry run.
func (m *InboundMessage) IsDebug() bool {
	return m.DebugID != ""
}

// OutboundMessage points downstream steps at a persisted Gateway.
type OutboundMessage struct {
	WorkflowID string `json:"workflowId"`
	GatewayID  string `json:"gatewayId"`
}

// ErrorNotification is sent to the workflow error subscribers.
type ErrorNotification struct {
	WorkflowID                string   `json:"workflowId"`
	WorkflowTemplateName      string   `json:"workflowTemplateName"`
	WorkflowErrorsSubscribers []string `json:"workflowErrorsSubscribers"`
	GatewayTemplateID         int64    `json:"gatewayTemplateId"`
	GatewayTemplateName       string   `json:"gatewayTemplateName"`
	Error                     string   `json:"error"`
}
