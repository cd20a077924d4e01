package testutil

import (
	"time"

	"github.com/hupe1980/proposalmesh/core"
)

// RunBuilder provides a fluent helper for constructing pipeline runs in tests.
// Example:
//
//	run := NewRunBuilder("run-1").Status(core.RunRunning).Task(core.AgentResearch, core.TaskRunning).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type RunBuilder struct {
	id            string
	req           core.Request
	status        core.RunStatus
	failureReason string
	taskKinds     []core.AgentKind
	taskStatuses  map[core.AgentKind]core.TaskStatus
	artifacts     []core.Artifact
}

// NewRunBuilder creates a builder for a run with the given id. The request
// defaults to a small fixture company; override with Company and Industry.
func NewRunBuilder(id string) *RunBuilder {
	return &RunBuilder{
		id:           id,
		req:          core.Request{Company: "Acme Logistics", Industry: "supply-chain"},
		status:       core.RunPending,
		taskStatuses: map[core.AgentKind]core.TaskStatus{},
	}
}

// Company overrides the requested company name (chainable).
func (b *RunBuilder) Company(name string) *RunBuilder { b.req.Company = name; return b }

// Industry overrides the requested industry (chainable).
func (b *RunBuilder) Industry(name string) *RunBuilder { b.req.Industry = name; return b }

// Status sets the run status (chainable). Terminal statuses also receive a
// completion timestamp on Build.
func (b *RunBuilder) Status(s core.RunStatus) *RunBuilder { b.status = s; return b }

// FailureReason sets the failure reason recorded on the run (chainable).
func (b *RunBuilder) FailureReason(reason string) *RunBuilder {
	b.failureReason = reason
	return b
}

// Task records a task of the given kind at the given status (chainable).
// Tasks are attached without dependency edges; tests that exercise the
// dependency graph should build runs through the engine instead.
func (b *RunBuilder) Task(kind core.AgentKind, status core.TaskStatus) *RunBuilder {
	if _, ok := b.taskStatuses[kind]; !ok {
		b.taskKinds = append(b.taskKinds, kind)
	}
	b.taskStatuses[kind] = status
	return b
}

// AllTasks records one task per known agent kind, all at the given status (chainable).
func (b *RunBuilder) AllTasks(status core.TaskStatus) *RunBuilder {
	for _, kind := range core.AgentKinds() {
		b.Task(kind, status)
	}
	return b
}

// Artifact attaches an artifact to the run under its kind (chainable).
func (b *RunBuilder) Artifact(a core.Artifact) *RunBuilder {
	b.artifacts = append(b.artifacts, a)
	return b
}

// Build constructs the *core.PipelineRun value.
func (b *RunBuilder) Build() *core.PipelineRun {
	run := core.NewPipelineRun(b.id, b.req)
	run.Status = b.status
	run.FailureReason = b.failureReason
	if b.status.Terminal() {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}
	for _, kind := range b.taskKinds {
		task := core.NewAgentTask(kind, nil)
		task.Status = b.taskStatuses[kind]
		run.Tasks[kind] = task
	}
	for _, a := range b.artifacts {
		run.Artifacts[a.Kind()] = a
	}
	return run
}
