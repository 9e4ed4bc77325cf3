package service

import (
	"fmt"
	"strings"
)

// InvalidPendingAgentOperationError is returned when an update touches
// pending agents without enabling or disabling them.
type InvalidPendingAgentOperationError struct {
	UUIDs []string
}

func (e InvalidPendingAgentOperationError) Error() string {
	return fmt.Sprintf(
		"Pending agents [%s] must be explicitly enabled or disabled when performing any operations on them.",
		strings.Join(e.UUIDs, ", "),
	)
}

func NewInvalidPendingAgentOperationError(uuids []string) *InvalidPendingAgentOperationError {
	return &InvalidPendingAgentOperationError{UUIDs: uuids}
}

// AgentsNotDisabledError is returned when deleting agents that are not
// disabled.
type AgentsNotDisabledError struct {
	UUIDs []string
}

func (e AgentsNotDisabledError) Error() string {
	return fmt.Sprintf(
		"Could not delete agents [%s] as they are not disabled. Disable agents before deleting them.",
		strings.Join(e.UUIDs, ", "),
	)
}

func NewAgentsNotDisabledError(uuids []string) *AgentsNotDisabledError {
	return &AgentsNotDisabledError{UUIDs: uuids}
}
