package store

import (
	"context"
	"fmt"
	"os"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/thelarryrutledge/nvlp-go/internal/filex"
)

type fileStore struct {
	mu   sync.Mutex
	path string
}

// NewFile constructs a store persisted as a JSON file at path. Writes go
// through an atomic temp-file replace, so a crash mid-write leaves either the
// previous queue or the new one, never a truncated file. The mutex serializes
// the read-modify-write cycle across goroutines of this process.
func NewFile(path string) Store {
	return &fileStore{path: path}
}

func (s *fileStore) List(ctx context.Context) ([]Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *fileStore) Append(ctx context.Context, req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	replaced := false
	for i, e := range entries {
		if e.ID == req.ID {
			entries[i] = req
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, req)
	}

	return s.save(entries)
}

func (s *fileStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	for i, e := range entries {
		if e.ID == id {
			entries = append(entries[:i], entries[i+1:]...)
			return s.save(entries)
		}
	}
	return nil
}

func (s *fileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(nil)
}

func (s *fileStore) load() ([]Request, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read queue file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var entries []Request
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode queue file: %w", err)
	}
	return entries, nil
}

func (s *fileStore) save(entries []Request) error {
	if entries == nil {
		entries = []Request{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	return filex.AtomicWrite(s.path, data, 0o600)
}
