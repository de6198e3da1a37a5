package gateway

import "errors"

var (
	// ErrNoOutSequences is raised when no exclusive formula matched and none is the default.
	ErrNoOutSequences = errors.New("Gateway without any out sequences.") //nolint:revive,stylecheck

	// ErrUnknownGatewayType is raised for a gateway type without a decision algorithm.
	ErrUnknownGatewayType = errors.New("unknown gateway type")

	// ErrFormulaWithoutSequence is raised when the selected formula has no paired sequence id.
	ErrFormulaWithoutSequence = errors.New("formula without out sequence")

	// ErrInvalidMessage marks an inbound message that cannot be evaluated.
	ErrInvalidMessage = errors.New("invalid gateway message")
)
