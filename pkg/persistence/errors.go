// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrGatewayTemplateNotFound indicates a gateway template was not found by the given identifier.
	ErrGatewayTemplateNotFound = errors.New("gateway template not found")

	// ErrGatewayTypeNotFound indicates a gateway type was not found by the given identifier.
	ErrGatewayTypeNotFound = errors.New("gateway type not found")

	// ErrGatewayNotFound indicates a gateway decision record was not found.
	ErrGatewayNotFound = errors.New("gateway not found")

	// ErrGatewayAlreadyExists indicates a gateway with the same identifier was already recorded.
	ErrGatewayAlreadyExists = errors.New("gateway already exists")

	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowTemplateNotFound indicates a workflow template was not found.
	ErrWorkflowTemplateNotFound = errors.New("workflow template not found")
)

// GatewayError wraps gateway-related errors with additional context.
type GatewayError struct {
	Op                string // Operation being performed (e.g., "GetTemplate", "Create")
	GatewayTemplateID int64
	WorkflowID        string
	Err               error
}

func (e *GatewayError) Error() string {
	if e.WorkflowID != "" {
		return fmt.Sprintf("%s operation failed for gateway template %d in workflow %s: %v", e.Op, e.GatewayTemplateID, e.WorkflowID, e.Err)
	}

	return fmt.Sprintf("%s operation failed for gateway template %d: %v", e.Op, e.GatewayTemplateID, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for gateway errors.
func (e *GatewayError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewGatewayError creates a new gateway error with context.
func NewGatewayError(op string, gatewayTemplateID int64, workflowID string, err error) *GatewayError {
	return &GatewayError{
		Op:                op,
		GatewayTemplateID: gatewayTemplateID,
		WorkflowID:        workflowID,
		Err:               err,
	}
}

// IsGatewayTemplateNotFound checks if an error indicates a gateway template was not found.
func IsGatewayTemplateNotFound(err error) bool {
	return errors.Is(err, ErrGatewayTemplateNotFound)
}

// IsGatewayTypeNotFound checks if an error indicates a gateway type was not found.
func IsGatewayTypeNotFound(err error) bool {
	return errors.Is(err, ErrGatewayTypeNotFound)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}
