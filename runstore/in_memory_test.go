package runstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/proposalmesh/core"
	"github.com/hupe1980/proposalmesh/internal/testutil"
)

func newRun(id string) *core.PipelineRun {
	return testutil.NewRunBuilder(id).Build()
}

func TestInMemoryStoreCreateAndGet(t *testing.T) {
	store := NewInMemoryStore()
	require.NoError(t, store.Create(newRun("run-1")))

	got, err := store.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, core.RunPending, got.Status)

	// Reads are clones; mutating a snapshot never reaches the store.
	got.Status = core.RunCanceled
	again, err := store.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, core.RunPending, again.Status)
}

func TestInMemoryStoreRejectsDuplicateCreate(t *testing.T) {
	store := NewInMemoryStore()
	require.NoError(t, store.Create(newRun("run-1")))

	err := store.Create(newRun("run-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInMemoryStoreGetUnknown(t *testing.T) {
	store := NewInMemoryStore()
	_, err := store.Get("nope")
	require.ErrorIs(t, err, core.ErrRunNotFound)
}

func TestInMemoryStoreTerminalRunStaysReadable(t *testing.T) {
	store := NewInMemoryStore()
	run := newRun("run-1")
	require.NoError(t, store.Create(run))

	run.Status = core.RunCompleted
	require.NoError(t, store.Update(run))

	got, err := store.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, core.RunCompleted, got.Status)
	assert.Equal(t, 1, store.Len())
}

func TestInMemoryStoreRetentionCapEvictsOldest(t *testing.T) {
	store := NewInMemoryStore(func(o *InMemoryOptions) { o.MaxRetainedRuns = 1 })

	for _, id := range []string{"run-1", "run-2"} {
		run := newRun(id)
		require.NoError(t, store.Create(run))
		run.Status = core.RunCompleted
		require.NoError(t, store.Update(run))
	}

	_, err := store.Get("run-1")
	require.ErrorIs(t, err, core.ErrRunNotFound)

	got, err := store.Get("run-2")
	require.NoError(t, err)
	assert.Equal(t, core.RunCompleted, got.Status)
}

func TestInMemoryStoreDelete(t *testing.T) {
	store := NewInMemoryStore()
	require.NoError(t, store.Create(newRun("run-1")))

	require.NoError(t, store.Delete("run-1"))
	_, err := store.Get("run-1")
	require.ErrorIs(t, err, core.ErrRunNotFound)

	require.ErrorIs(t, store.Delete("run-1"), core.ErrRunNotFound)
}
