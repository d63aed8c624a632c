package orchestrator

import (
	"sync"

	"github.com/pageharvest/harvestd/internal/harvest"
)

// JobStore tracks job lifecycle in memory. Jobs are ephemeral by design:
// records are only needed while a caller might still poll for status, so
// nothing is persisted.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]harvest.Job
}

// NewJobStore creates an empty JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]harvest.Job),
	}
}

// Create records a new job.
func (s *JobStore) Create(job harvest.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

// Get returns a snapshot of the job, if known.
func (s *JobStore) Get(id string) (harvest.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

// Update applies fn to the stored job under the lock.
func (s *JobStore) Update(id string, fn func(*harvest.Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	fn(&job)
	s.jobs[id] = job
}
