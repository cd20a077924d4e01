package core

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across packages.
var (
	// ErrRunNotFound is returned when a run id is unknown or already evicted.
	ErrRunNotFound = errors.New("pipeline run not found")

	// ErrNotReady is returned by result lookups while a run is still in
	// flight.
	ErrNotReady = errors.New("proposal not ready")
)

// AgentErrorKind classifies agent-boundary failures.
type AgentErrorKind string

// Agent failure kinds.
const (
	// AgentErrCallsExhausted: every required tool call exhausted its retries.
	AgentErrCallsExhausted AgentErrorKind = "ALL_REQUIRED_CALLS_EXHAUSTED"

	// AgentErrInternalAssembly: the final assembler itself failed. The only
	// failure that can take down a whole run.
	AgentErrInternalAssembly AgentErrorKind = "INTERNAL_ASSEMBLY_ERROR"
)

// AgentError is a structured agent-boundary failure surfaced to the
// coordinator.
type AgentError struct {
	Agent   AgentKind
	Kind    AgentErrorKind
	Message string
	Err     error
}

// Error implements the error interface with a stable format.
func (e *AgentError) Error() string {
	return fmt.Sprintf("agent error [%s] in %s: %s", e.Kind, e.Agent, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *AgentError) Unwrap() error { return e.Err }

// NewAgentError constructs an AgentError.
func NewAgentError(agent AgentKind, kind AgentErrorKind, message string) *AgentError {
	return &AgentError{Agent: agent, Kind: kind, Message: message}
}

// RunFailedError reports a terminal run that produced no document, carrying
// the human-readable reason surfaced by status and result queries.
type RunFailedError struct {
	RunID  string
	Status RunStatus
	Reason string
}

// Error implements the error interface.
func (e *RunFailedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("run %s %s", e.RunID, e.Status)
	}
	return fmt.Sprintf("run %s %s: %s", e.RunID, e.Status, e.Reason)
}
