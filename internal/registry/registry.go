// Package registry is the in-memory store of live campaign state. One shared
// lock guards the whole map; critical sections only assign fields, never do
// I/O, so contention stays negligible at one writer per running job.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"SteadySend/internal/models"
)

// Registry is a concurrency-safe store of jobs keyed by job id. Completed
// jobs stay queryable until the process exits; only failed creations are ever
// removed.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*models.Job
	log  *zap.Logger
}

func New(log *zap.Logger) *Registry {
	return &Registry{
		jobs: make(map[string]*models.Job),
		log:  log,
	}
}

// Create allocates a running job for total recipients and returns its id.
func (r *Registry) Create(total int) string {
	id := "bulk-" + uuid.NewString()
	job := &models.Job{
		ID:               id,
		Total:            total,
		Running:          true,
		StartTime:        time.Now(),
		CurrentRecipient: models.RecipientInitializing,
		FailedEntries:    []models.FailedEntry{},
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id] = job
	return id
}

// Snapshot returns a copy of the job's current state. Callers never receive a
// live reference.
func (r *Registry) Snapshot(id string) (models.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return job.Clone(), true
}

// Mutate applies fn to the live job under the lock. This is the only way any
// job field changes. Unknown ids are logged and ignored.
func (r *Registry) Mutate(id string, fn func(*models.Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		r.log.Warn("mutate on unknown job", zap.String("job_id", id))
		return
	}
	fn(job)
}

// Running reports the live running flag, used by workers for the
// per-recipient stop check.
func (r *Registry) Running(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	return ok && job.Running
}

// RequestStop flips the running flag off. The worker honors it at its next
// per-recipient check; an in-flight send is never aborted. Returns false when
// the job is unknown.
func (r *Registry) RequestStop(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return false
	}
	job.Running = false
	return true
}

// Remove deletes the entry. Used only to clean up after a failed creation
// attempt; completed jobs remain queryable.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

// Len returns the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}
