package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"SteadySend/internal/models"
)

func TestCreateInitializesJob(t *testing.T) {
	r := New(zap.NewNop())

	id := r.Create(42)
	require.NotEmpty(t, id)
	assert.Contains(t, id, "bulk-")

	job, ok := r.Snapshot(id)
	require.True(t, ok)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, 42, job.Total)
	assert.True(t, job.Running)
	assert.Zero(t, job.Processed)
	assert.Zero(t, job.Success)
	assert.Zero(t, job.Failed)
	assert.Equal(t, models.RecipientInitializing, job.CurrentRecipient)
	assert.False(t, job.StartTime.IsZero())
	assert.Nil(t, job.EndTime)
	assert.NotNil(t, job.FailedEntries)
	assert.Empty(t, job.FailedEntries)
}

func TestCreateReturnsUniqueIDs(t *testing.T) {
	r := New(zap.NewNop())
	a := r.Create(1)
	b := r.Create(1)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, r.Len())
}

func TestSnapshotIsACopy(t *testing.T) {
	r := New(zap.NewNop())
	id := r.Create(3)

	snap, ok := r.Snapshot(id)
	require.True(t, ok)
	snap.Processed = 99
	snap.FailedEntries = append(snap.FailedEntries, models.FailedEntry{Email: "x@y.co", Error: "nope"})

	fresh, _ := r.Snapshot(id)
	assert.Zero(t, fresh.Processed)
	assert.Empty(t, fresh.FailedEntries)
}

func TestSnapshotUnknownJob(t *testing.T) {
	r := New(zap.NewNop())
	_, ok := r.Snapshot("bulk-nope")
	assert.False(t, ok)
}

func TestMutate(t *testing.T) {
	r := New(zap.NewNop())
	id := r.Create(5)

	r.Mutate(id, func(j *models.Job) {
		j.Processed = 2
		j.Success = 1
		j.Failed = 1
		j.FailedEntries = append(j.FailedEntries, models.FailedEntry{Email: "a@b.co", Error: "Network error"})
	})

	job, _ := r.Snapshot(id)
	assert.Equal(t, 2, job.Processed)
	assert.Equal(t, 1, job.Success)
	assert.Equal(t, 1, job.Failed)
	require.Len(t, job.FailedEntries, 1)

	// Unknown id is a logged no-op.
	r.Mutate("bulk-gone", func(j *models.Job) { j.Processed = 1000 })
}

func TestRequestStop(t *testing.T) {
	r := New(zap.NewNop())
	id := r.Create(2)

	assert.True(t, r.Running(id))
	assert.True(t, r.RequestStop(id))
	assert.False(t, r.Running(id))

	// Idempotent, and never flips back.
	assert.True(t, r.RequestStop(id))
	assert.False(t, r.Running(id))

	assert.False(t, r.RequestStop("bulk-unknown"))
	assert.False(t, r.Running("bulk-unknown"))
}

func TestRemove(t *testing.T) {
	r := New(zap.NewNop())
	id := r.Create(1)
	r.Remove(id)

	_, ok := r.Snapshot(id)
	assert.False(t, ok)
	assert.Zero(t, r.Len())
}

func TestConcurrentMutations(t *testing.T) {
	r := New(zap.NewNop())
	id := r.Create(1000)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				r.Mutate(id, func(job *models.Job) { job.Processed++ })
				_, _ = r.Snapshot(id)
			}
		}()
	}
	wg.Wait()

	job, _ := r.Snapshot(id)
	assert.Equal(t, 1000, job.Processed)
}
