package core

import "context"

// RunStore persists PipelineRun bookkeeping keyed by run id. Implementations
// must return cloned runs from Get so callers can never mutate coordinator
// state; the coordinator is the only writer.
type RunStore interface {
	// Create stores a new run. It fails if the id already exists.
	Create(run *PipelineRun) error

	// Get returns a snapshot (clone) of the run, or ErrRunNotFound.
	Get(runID string) (*PipelineRun, error)

	// Update replaces the stored run with the given state.
	Update(run *PipelineRun) error

	// Delete removes a run, releasing its retained results.
	Delete(runID string) error
}

// DocumentArchive persists rendered proposal documents beyond the run store's
// retention window (filesystem, object storage).
type DocumentArchive interface {
	// Save stores document bytes under (runID, name).
	Save(ctx context.Context, runID, name string, data []byte) error

	// Get retrieves previously archived bytes.
	Get(ctx context.Context, runID, name string) ([]byte, error)

	// List returns the archived object names for a run.
	List(ctx context.Context, runID string) ([]string, error)
}
