package store

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu      sync.Mutex
	entries []Request
}

// NewMemory constructs a process-lifetime store. Nothing survives a restart;
// it is the default for clients that only want same-session replay.
func NewMemory() Store {
	return &memoryStore{}
}

func (s *memoryStore) List(ctx context.Context) ([]Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *memoryStore) Append(ctx context.Context, req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.ID == req.ID {
			s.entries[i] = req
			return nil
		}
	}
	s.entries = append(s.entries, req)
	return nil
}

func (s *memoryStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *memoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}
