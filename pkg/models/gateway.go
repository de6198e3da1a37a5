// Package models defines the domain models of the gateway decision service.
package models

import (
	"time"
)

// GatewayTypeName is the kind of branching a gateway performs.
type GatewayTypeName string

const (
	GatewayTypeParallel  GatewayTypeName = "parallel"
	GatewayTypeExclusive GatewayTypeName = "exclusive"
	GatewayTypeInclusive GatewayTypeName = "inclusive"
)

// IsValid reports whether the name is one of the known gateway types.
func (n GatewayTypeName) IsValid() bool {
	switch n {
	case GatewayTypeParallel, GatewayTypeExclusive, GatewayTypeInclusive:
		return true
	default:
		return false
	}
}

// GatewayType is immutable reference data selecting the decision algorithm.
type GatewayType struct {
	ID   int64           `json:"id"`
	Name GatewayTypeName `json:"name" validate:"required"`
}

// GatewayTemplate is the design-time definition of a gateway.
type GatewayTemplate struct {
	ID            int64  `json:"id"`
	GatewayTypeID int64  `json:"gatewayTypeId" validate:"required"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	SchemaText    string `json:"schemaText"`
}

// GatewayData is the output of a decision algorithm.
type GatewayData struct {
	SequenceIDs      []string `json:"sequenceIds"`
	ResultSequences  []string `json:"resultSequences,omitempty"`
	ResultSequence   string   `json:"resultSequence,omitempty"`
	Condition        string   `json:"condition,omitempty"`
	HandledAsDefault *bool    `json:"handledAsDefault,omitempty"`
}

// Gateway is the append-only decision record of one gateway evaluation.
type Gateway struct {
	ID                string      `json:"id"`
	GatewayTemplateID int64       `json:"gatewayTemplateId"`
	GatewayTypeID     int64       `json:"gatewayTypeId"`
	WorkflowID        string      `json:"workflowId"`
	Name              string      `json:"name"`
	Data              GatewayData `json:"data"`
	Version           int         `json:"version"`
	CreatedBy         string      `json:"createdBy"`
	UpdatedBy         string      `json:"updatedBy"`
	CreatedAt         time.Time   `json:"createdAt"`
}
