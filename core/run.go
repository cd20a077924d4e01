package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a PipelineRun.
type RunStatus string

// Run lifecycle states. Completed, PartiallyFailed, Failed and Canceled are
// terminal; every run reaches one of them within the configured maximum run
// duration.
const (
	RunPending         RunStatus = "pending"
	RunRunning         RunStatus = "running"
	RunCompleted       RunStatus = "completed"
	RunPartiallyFailed RunStatus = "partially_failed"
	RunFailed          RunStatus = "failed"
	RunCanceled        RunStatus = "canceled"
)

// Terminal reports whether the status is a terminal run state.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunPartiallyFailed, RunFailed, RunCanceled:
		return true
	}
	return false
}

// PipelineRun identifies one end-to-end execution from request submission to
// final document. It is owned exclusively by the coordinator's run loop for
// its lifetime; all external reads go through clones, so no locking is
// needed on the struct itself.
type PipelineRun struct {
	ID            string
	Request       Request
	Status        RunStatus
	CreatedAt     time.Time
	CompletedAt   *time.Time
	FailureReason string
	Tasks         map[AgentKind]*AgentTask
	Artifacts     map[ArtifactKind]Artifact
}

// NewPipelineRun creates a Pending run with empty task and artifact sets.
func NewPipelineRun(id string, req Request) *PipelineRun {
	return &PipelineRun{
		ID:        id,
		Request:   req,
		Status:    RunPending,
		CreatedAt: time.Now().UTC(),
		Tasks:     make(map[AgentKind]*AgentTask),
		Artifacts: make(map[ArtifactKind]Artifact),
	}
}

// Task returns the AgentTask for the given agent kind.
func (r *PipelineRun) Task(kind AgentKind) (*AgentTask, bool) {
	t, ok := r.Tasks[kind]
	return t, ok
}

// Artifact returns the artifact of the given kind if one has been recorded.
func (r *PipelineRun) Artifact(kind ArtifactKind) (Artifact, bool) {
	a, ok := r.Artifacts[kind]
	return a, ok
}

// Document returns the terminal ProposalDocument if the run produced one.
func (r *PipelineRun) Document() (*ProposalDocument, bool) {
	a, ok := r.Artifacts[ArtifactProposalDocument]
	if !ok {
		return nil, false
	}
	doc, ok := a.(*ProposalDocument)
	return doc, ok
}

// Terminal reports whether the run has reached a terminal status.
func (r *PipelineRun) Terminal() bool { return r.Status.Terminal() }

// Clone returns a deep copy of the run bookkeeping. Artifact values are
// shared: they are immutable once recorded.
func (r *PipelineRun) Clone() *PipelineRun {
	c := &PipelineRun{
		ID:            r.ID,
		Request:       r.Request,
		Status:        r.Status,
		CreatedAt:     r.CreatedAt,
		FailureReason: r.FailureReason,
		Tasks:         make(map[AgentKind]*AgentTask, len(r.Tasks)),
		Artifacts:     make(map[ArtifactKind]Artifact, len(r.Artifacts)),
	}
	if r.CompletedAt != nil {
		ts := *r.CompletedAt
		c.CompletedAt = &ts
	}
	for k, t := range r.Tasks {
		c.Tasks[k] = t.Clone()
	}
	for k, a := range r.Artifacts {
		c.Artifacts[k] = a
	}
	return c
}

// pipelineRunJSON is the wire form of PipelineRun; artifacts are stored as a
// kind-keyed map of raw payloads so the interface values round-trip.
type pipelineRunJSON struct {
	ID            string                           `json:"id"`
	Request       Request                          `json:"request"`
	Status        RunStatus                        `json:"status"`
	CreatedAt     time.Time                        `json:"created_at"`
	CompletedAt   *time.Time                       `json:"completed_at,omitempty"`
	FailureReason string                           `json:"failure_reason,omitempty"`
	Tasks         map[AgentKind]*AgentTask         `json:"tasks,omitempty"`
	Artifacts     map[ArtifactKind]json.RawMessage `json:"artifacts,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r *PipelineRun) MarshalJSON() ([]byte, error) {
	out := pipelineRunJSON{
		ID:            r.ID,
		Request:       r.Request,
		Status:        r.Status,
		CreatedAt:     r.CreatedAt,
		CompletedAt:   r.CompletedAt,
		FailureReason: r.FailureReason,
		Tasks:         r.Tasks,
	}
	if len(r.Artifacts) > 0 {
		out.Artifacts = make(map[ArtifactKind]json.RawMessage, len(r.Artifacts))
		for k, a := range r.Artifacts {
			data, err := MarshalArtifact(a)
			if err != nil {
				return nil, fmt.Errorf("run %s: %w", r.ID, err)
			}
			out.Artifacts[k] = data
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *PipelineRun) UnmarshalJSON(data []byte) error {
	var in pipelineRunJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.ID = in.ID
	r.Request = in.Request
	r.Status = in.Status
	r.CreatedAt = in.CreatedAt
	r.CompletedAt = in.CompletedAt
	r.FailureReason = in.FailureReason
	r.Tasks = in.Tasks
	if r.Tasks == nil {
		r.Tasks = make(map[AgentKind]*AgentTask)
	}
	r.Artifacts = make(map[ArtifactKind]Artifact, len(in.Artifacts))
	for k, raw := range in.Artifacts {
		a, err := UnmarshalArtifact(k, raw)
		if err != nil {
			return fmt.Errorf("run %s: %w", in.ID, err)
		}
		r.Artifacts[k] = a
	}
	return nil
}
