package models

import "time"

// Document is a workflow document attached to a task or an event.
type Document struct {
	ID         string         `json:"id"`
	WorkflowID string         `json:"workflowId"`
	TaskID     string         `json:"taskId,omitempty"`
	EventID    string         `json:"eventId,omitempty"`
	Name       string         `json:"name"`
	Data       map[string]any `json:"data"`
	IsCurrent  bool           `json:"isCurrent"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Event is a workflow event.
type Event struct {
	ID         string         `json:"id"`
	WorkflowID string         `json:"workflowId"`
	Name       string         `json:"name"`
	Data       map[string]any `json:"data"`
	CreatedAt  time.Time      `json:"createdAt"`
}
