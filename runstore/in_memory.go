package runstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/hupe1980/proposalmesh/core"
)

// InMemoryOptions configure the retention behavior of InMemoryStore.
type InMemoryOptions struct {
	// MaxRetainedRuns caps how many terminal runs are kept before the
	// least recently read one is evicted. Zero means unbounded.
	MaxRetainedRuns int
	// Retention is how long a terminal run stays readable. Zero disables
	// time-based expiry.
	Retention time.Duration
}

// InMemoryStore keeps in-flight runs in a plain map and moves terminal runs
// into a size- and TTL-bounded cache, so finished results stay queryable for
// the retention window without the process accumulating state forever. All
// reads return clones; the coordinator's copy is never shared.
type InMemoryStore struct {
	mu       sync.RWMutex
	active   map[string]*core.PipelineRun
	retained *expirable.LRU[string, *core.PipelineRun]
}

var _ core.RunStore = (*InMemoryStore)(nil)

// NewInMemoryStore returns an empty in-memory run store.
func NewInMemoryStore(optFns ...func(o *InMemoryOptions)) *InMemoryStore {
	opts := InMemoryOptions{
		MaxRetainedRuns: 1024,
		Retention:       time.Hour,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &InMemoryStore{
		active:   make(map[string]*core.PipelineRun),
		retained: expirable.NewLRU[string, *core.PipelineRun](opts.MaxRetainedRuns, nil, opts.Retention),
	}
}

// Create implements core.RunStore.
func (s *InMemoryStore) Create(run *core.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[run.ID]; ok {
		return fmt.Errorf("runstore: run %s already exists", run.ID)
	}
	if _, ok := s.retained.Get(run.ID); ok {
		return fmt.Errorf("runstore: run %s already exists", run.ID)
	}
	s.active[run.ID] = run.Clone()
	return nil
}

// Get implements core.RunStore. The returned run is a clone.
func (s *InMemoryStore) Get(runID string) (*core.PipelineRun, error) {
	s.mu.RLock()
	run, ok := s.active[runID]
	s.mu.RUnlock()
	if ok {
		return run.Clone(), nil
	}
	if run, ok := s.retained.Get(runID); ok {
		return run.Clone(), nil
	}
	return nil, core.ErrRunNotFound
}

// Update implements core.RunStore. A run reaching a terminal status moves
// from the active map into the retention cache.
func (s *InMemoryStore) Update(run *core.PipelineRun) error {
	clone := run.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if clone.Terminal() {
		delete(s.active, clone.ID)
		s.retained.Add(clone.ID, clone)
		return nil
	}
	s.active[clone.ID] = clone
	return nil
}

// Delete implements core.RunStore.
func (s *InMemoryStore) Delete(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[runID]; ok {
		delete(s.active, runID)
		return nil
	}
	if s.retained.Remove(runID) {
		return nil
	}
	return core.ErrRunNotFound
}

// Len returns the number of runs currently readable (active plus retained).
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active) + s.retained.Len()
}
