package models

import (
	"encoding/json"
	"time"
)

// Workflow is a running workflow instance. Only the error flag is written by this service.
type Workflow struct {
	ID                 string    `json:"id"`
	WorkflowTemplateID int64     `json:"workflowTemplateId"`
	IsError            bool      `json:"isError"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// WorkflowTemplate carries the template-level configuration used by gateway evaluation.
type WorkflowTemplate struct {
	ID                        int64             `json:"id"`
	Name                      string            `json:"name"`
	WorkflowErrorsSubscribers []string          `json:"workflowErrorsSubscribers,omitempty"`
	GlobalFunctions           map[string]string `json:"globalFunctions,omitempty"`
}

// WorkflowHistory stamps the template revision that is active for new records.
type WorkflowHistory struct {
	ID                 int64     `json:"id"`
	WorkflowTemplateID int64     `json:"workflowTemplateId"`
	Version            int       `json:"version"`
	CreatedAt          time.Time `json:"createdAt"`
}

// WorkflowDebugData holds either the decision result or the error of a dry run.
type WorkflowDebugData struct {
	Result       any             `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	QueueMessage json.RawMessage `json:"queueMessage"`
}

// WorkflowDebug records a dry-run evaluation instead of a real Gateway.
type WorkflowDebug struct {
	ID          string            `json:"id"`
	WorkflowID  string            `json:"workflowId"`
	ServiceName string            `json:"serviceName"`
	Data        WorkflowDebugData `json:"data"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// WorkflowError records an unrecoverable evaluation failure.
type WorkflowError struct {
	ID           string          `json:"id"`
	WorkflowID   string          `json:"workflowId"`
	ServiceName  string          `json:"serviceName"`
	Error        string          `json:"error"`
	QueueMessage json.RawMessage `json:"queueMessage"`
	CreatedAt    time.Time       `json:"createdAt"`
}
