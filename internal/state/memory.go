package state

import (
	"context"
	"slices"
	"sync"
)

// MemorySessionStore keeps sessions in process memory. Used by tests and
// single-instance development runs.
type MemorySessionStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{values: make(map[string][]byte)}
}

func (s *MemorySessionStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.values[key]), nil
}

func (s *MemorySessionStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = slices.Clone(value)
	return nil
}

func (s *MemorySessionStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Update holds the store lock while fn runs, so updates never interleave
func (s *MemorySessionStore) Update(_ context.Context, key string, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(slices.Clone(s.values[key]))
	if err != nil {
		return err
	}
	if next != nil {
		s.values[key] = slices.Clone(next)
	}
	return nil
}

// Len reports how many keys are stored
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}
