package ingest

import (
	"sync"

	"imgvault/internal/models"
)

// JobStore maps completed job ids to the reference the worker built.
// A job id with no entry is pending, or failed without trace.
type JobStore struct {
	mu   sync.Mutex
	refs map[string]models.FileReference
}

// NewJobStore returns an empty store.
func NewJobStore() *JobStore {
	return &JobStore{refs: make(map[string]models.FileReference)}
}

// Put records the reference for a completed job.
func (s *JobStore) Put(jobID string, ref models.FileReference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[jobID] = ref
}

// Get returns the reference for jobID, if the job completed.
func (s *JobStore) Get(jobID string) (models.FileReference, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.refs[jobID]
	return ref, ok
}

// Len returns the number of completed jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refs)
}
