package core

import (
	"time"

	"github.com/google/uuid"
)

// RunEventType categorizes the progress events a run emits.
type RunEventType string

// Run event types emitted by the coordinator.
const (
	EventRunCreated  RunEventType = "run.created"
	EventRunStatus   RunEventType = "run.status"
	EventTaskStatus  RunEventType = "task.status"
	EventToolCall    RunEventType = "tool.call"
	EventRunFinished RunEventType = "run.finished"
)

// RunEvent is an immutable progress record for one PipelineRun. Events are
// delivered to watchers in emission order; slow watchers lose the oldest
// events rather than blocking the coordinator.
type RunEvent struct {
	ID         string       `json:"id"`
	RunID      string       `json:"run_id"`
	Type       RunEventType `json:"type"`
	RunStatus  RunStatus    `json:"run_status,omitempty"`
	TaskKind   AgentKind    `json:"task_kind,omitempty"`
	TaskStatus TaskStatus   `json:"task_status,omitempty"`
	Provider   string       `json:"provider,omitempty"`
	Detail     string       `json:"detail,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
}

// NewRunEvent creates a bare event bound to a run.
func NewRunEvent(runID string, t RunEventType) RunEvent {
	return RunEvent{
		ID:        NewID(),
		RunID:     runID,
		Type:      t,
		Timestamp: time.Now().UTC(),
	}
}

// NewRunStatusEvent records a run-level status change.
func NewRunStatusEvent(runID string, status RunStatus, detail string) RunEvent {
	e := NewRunEvent(runID, EventRunStatus)
	if status.Terminal() {
		e.Type = EventRunFinished
	}
	e.RunStatus = status
	e.Detail = detail
	return e
}

// NewTaskStatusEvent records an agent-task transition.
func NewTaskStatusEvent(runID string, kind AgentKind, status TaskStatus, detail string) RunEvent {
	e := NewRunEvent(runID, EventTaskStatus)
	e.TaskKind = kind
	e.TaskStatus = status
	e.Detail = detail
	return e
}

// NewToolCallEvent records the completion of one provider invocation.
func NewToolCallEvent(runID string, kind AgentKind, call ToolCall) RunEvent {
	e := NewRunEvent(runID, EventToolCall)
	e.TaskKind = kind
	e.Provider = call.Provider
	if call.Outcome.Failure != nil {
		e.Detail = call.Outcome.Failure.Detail
	}
	return e
}

// NewID generates a new unique identifier for runs, events and tool calls.
func NewID() string { return uuid.NewString() }
