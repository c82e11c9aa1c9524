package audit

import "sync"

// MemoryStore keeps entries in process memory, newest first.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Prepend(entry Entry, max int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append([]Entry{entry}, s.entries...)
	if max > 0 && len(s.entries) > max {
		s.entries = s.entries[:max]
	}
	return nil
}

func (s *MemoryStore) All() ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *MemoryStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}
