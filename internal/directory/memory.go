package directory

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore implements Store with in-process concurrency safety.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty directory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]User)}
}

func (s *MemoryStore) Insert(ctx context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return ErrUsernameTaken
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) FindByCredential(ctx context.Context, credential string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, credential) || strings.EqualFold(u.Email, credential) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *MemoryStore) List(ctx context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return ErrNotFound
	}
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}
