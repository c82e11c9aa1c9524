package jobs

import (
	"context"
	"sync"
)

// MemoryStore implements Store with in-process concurrency safety.
type MemoryStore struct {
	mu   sync.RWMutex
	seq  JobID
	jobs map[JobID]Job
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty job store. The sequence starts at 1.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[JobID]Job)}
}

func (s *MemoryStore) Insert(ctx context.Context, j Job) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	j.ID = s.seq
	s.jobs[j.ID] = j
	return j, nil
}

func (s *MemoryStore) Get(ctx context.Context, id JobID) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return cloneJob(j), nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, cloneJob(j))
	}
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; !ok {
		return ErrNotFound
	}
	s.jobs[j.ID] = cloneJob(j)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id JobID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return ErrNotFound
	}
	delete(s.jobs, id)
	return nil
}

// cloneJob copies the attachment slice so callers cannot mutate stored state.
func cloneJob(j Job) Job {
	if j.Attachments != nil {
		j.Attachments = append([]string(nil), j.Attachments...)
	}
	return j
}
