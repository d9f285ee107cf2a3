package runstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/book-expert/sentence-clips-service/internal/core"
)

// MemoryOpener hands out in-process run stores. The command line tool and
// pipeline tests use it where booting the embedded object store is not worth
// the cost. Runs never expire; they live until destroyed.
type MemoryOpener struct {
	mu   sync.Mutex
	runs map[string]*MemoryRunStore
}

// NewMemoryOpener creates an empty opener.
func NewMemoryOpener() *MemoryOpener {
	return &MemoryOpener{
		mu:   sync.Mutex{},
		runs: make(map[string]*MemoryRunStore),
	}
}

// Open creates the store for a fresh run, replacing any previous run under
// the same identifier.
func (o *MemoryOpener) Open(_ context.Context, runID string) (core.RunStore, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	store := &MemoryRunStore{
		mu:      sync.Mutex{},
		opener:  o,
		runID:   runID,
		objects: make(map[string][]byte),
	}
	o.runs[runID] = store

	return store, nil
}

// Bind reattaches to an existing run.
func (o *MemoryOpener) Bind(_ context.Context, runID string) (core.RunStore, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	store, ok := o.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrRunNotFound, runID)
	}

	return store, nil
}

// MemoryRunStore implements the core.RunStore interface on a plain map.
type MemoryRunStore struct {
	mu      sync.Mutex
	opener  *MemoryOpener
	runID   string
	objects map[string][]byte
}

// Put saves an artifact under its file name. Data is copied, so callers may
// reuse their buffers.
func (s *MemoryRunStore) Put(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[name] = append([]byte(nil), data...)

	return nil
}

// Get retrieves a copy of an artifact by file name.
func (s *MemoryRunStore) Get(_ context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrObjectNotFound, name)
	}

	return append([]byte(nil), data...), nil
}

// Delete removes one artifact from the run.
func (s *MemoryRunStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.objects[name]
	if !ok {
		return fmt.Errorf("%w: '%s'", ErrObjectNotFound, name)
	}

	delete(s.objects, name)

	return nil
}

// Destroy removes the run from its opener so later binds fail.
func (s *MemoryRunStore) Destroy(_ context.Context) error {
	s.opener.mu.Lock()
	delete(s.opener.runs, s.runID)
	s.opener.mu.Unlock()

	s.mu.Lock()
	s.objects = make(map[string][]byte)
	s.mu.Unlock()

	return nil
}
