package core

import (
	"fmt"
	"time"
)

// AgentKind identifies one of the pipeline's agent variants.
type AgentKind string

// Agent kinds in canonical dispatch order.
const (
	AgentResearch        AgentKind = "research"
	AgentMarketStandards AgentKind = "market_standards"
	AgentResourceAsset   AgentKind = "resource_asset"
	AgentFinalProposal   AgentKind = "final_proposal"
)

// AgentKinds returns all agent kinds in canonical order.
func AgentKinds() []AgentKind {
	return []AgentKind{AgentResearch, AgentMarketStandards, AgentResourceAsset, AgentFinalProposal}
}

// Valid reports whether k names a known agent kind.
func (k AgentKind) Valid() bool {
	switch k {
	case AgentResearch, AgentMarketStandards, AgentResourceAsset, AgentFinalProposal:
		return true
	}
	return false
}

// Produces returns the artifact kind a successful execution of this agent
// yields. Every agent produces exactly one artifact kind.
func (k AgentKind) Produces() ArtifactKind {
	switch k {
	case AgentResearch:
		return ArtifactResearchProfile
	case AgentMarketStandards:
		return ArtifactMarketTrends
	case AgentResourceAsset:
		return ArtifactResourceBundle
	case AgentFinalProposal:
		return ArtifactProposalDocument
	default:
		return ""
	}
}

// TaskStatus is the lifecycle state of an AgentTask. Transitions are driven
// exclusively by the coordinator and validated by Transition.
type TaskStatus string

// Task lifecycle states.
const (
	TaskWaiting   TaskStatus = "waiting"
	TaskReady     TaskStatus = "ready"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
	TaskSkipped   TaskStatus = "skipped"
)

// Terminal reports whether the status is a terminal task state.
func (s TaskStatus) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed || s == TaskSkipped
}

// taskTransitions is the closed set of legal status moves. Anything absent
// here is an orchestration bug surfaced by Transition.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskWaiting: {TaskReady, TaskSkipped},
	TaskReady:   {TaskRunning, TaskSkipped},
	TaskRunning: {TaskSucceeded, TaskFailed},
}

// AgentTask is one scheduled execution of an Agent within a PipelineRun. The
// coordinator owns all mutation; everyone else reads clones.
type AgentTask struct {
	Kind       AgentKind      `json:"kind"`
	DependsOn  []ArtifactKind `json:"depends_on,omitempty"`
	Status     TaskStatus     `json:"status"`
	RetryCount int            `json:"retry_count"`
	LastError  string         `json:"last_error,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// NewAgentTask creates a Waiting task for the given agent kind and
// dependency set.
func NewAgentTask(kind AgentKind, dependsOn []ArtifactKind) *AgentTask {
	deps := make([]ArtifactKind, len(dependsOn))
	copy(deps, dependsOn)
	return &AgentTask{Kind: kind, DependsOn: deps, Status: TaskWaiting}
}

// Transition moves the task to the requested status, rejecting moves outside
// the allowed transition table and any move out of a terminal state.
func (t *AgentTask) Transition(to TaskStatus) error {
	allowed, ok := taskTransitions[t.Status]
	if !ok {
		return fmt.Errorf("task %s: illegal transition from terminal state %s to %s", t.Kind, t.Status, to)
	}
	for _, s := range allowed {
		if s == to {
			t.Status = to
			return nil
		}
	}
	return fmt.Errorf("task %s: illegal transition from %s to %s", t.Kind, t.Status, to)
}

// Clone returns a deep copy safe for snapshotting.
func (t *AgentTask) Clone() *AgentTask {
	c := *t
	c.DependsOn = make([]ArtifactKind, len(t.DependsOn))
	copy(c.DependsOn, t.DependsOn)
	if t.StartedAt != nil {
		ts := *t.StartedAt
		c.StartedAt = &ts
	}
	if t.FinishedAt != nil {
		ts := *t.FinishedAt
		c.FinishedAt = &ts
	}
	return &c
}
