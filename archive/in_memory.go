package archive

import (
	"context"
	"sort"
	"sync"

	"github.com/hupe1980/proposalmesh/core"
)

// InMemoryArchive keeps documents in a nested map guarded by an RWMutex.
// Data is copied on save and retrieval to avoid accidental external mutation
// of internal buffers. Suited for tests and single-process demos; it does
// not enforce retention limits or size quotas.
//
// Layout: runID -> name -> raw bytes
type InMemoryArchive struct {
	mu   sync.RWMutex
	docs map[string]map[string][]byte
}

var _ core.DocumentArchive = (*InMemoryArchive)(nil)

// NewInMemoryArchive returns an empty in-memory document archive.
func NewInMemoryArchive() *InMemoryArchive {
	return &InMemoryArchive{docs: make(map[string]map[string][]byte)}
}

// Save stores (or overwrites) the document bytes for the given run and name.
// The input slice is copied before storage.
func (a *InMemoryArchive) Save(_ context.Context, runID, name string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	byName, ok := a.docs[runID]
	if !ok {
		byName = make(map[string][]byte)
		a.docs[runID] = byName
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	byName[name] = buf
	return nil
}

// Get retrieves a copy of the stored bytes or ErrNotFound.
func (a *InMemoryArchive) Get(_ context.Context, runID, name string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	data, ok := a.docs[runID][name]
	if !ok {
		return nil, ErrNotFound
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// List returns the sorted document names archived for a run.
func (a *InMemoryArchive) List(_ context.Context, runID string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	byName := a.docs[runID]
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
