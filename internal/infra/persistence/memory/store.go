// Package memory provides a process-local document backend used for tests and
// ephemeral environments. It keeps the serialised bytes rather than the
// document value so that every load exercises the same decode path as the
// durable backends.
package memory

import (
	"context"
	"sync"

	"custodycore/internal/infra/persistence/snapshot"
	"custodycore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.DocumentStore = (*Store)(nil)

// Store holds one serialised document in memory.
type Store struct {
	mu     sync.RWMutex
	data   []byte
	saves  int
	failFn func() error
}

// NewStore returns an empty in-memory backend.
func NewStore() *Store { return &Store{} }

// Driver returns the storage driver identifier.
func (s *Store) Driver() domain.StorageDriver { return domain.StorageMemory }

// Load decodes the stored payload or reports domain.ErrNoDocument.
func (s *Store) Load(_ context.Context) (domain.Document, error) {
	s.mu.RLock()
	data := append([]byte(nil), s.data...)
	s.mu.RUnlock()
	return snapshot.Unmarshal(data)
}

// Save replaces the stored payload.
func (s *Store) Save(_ context.Context, doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFn != nil {
		if err := s.failFn(); err != nil {
			return err
		}
	}
	data, err := snapshot.Marshal(doc)
	if err != nil {
		return err
	}
	s.data = data
	s.saves++
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Raw returns a copy of the stored payload.
func (s *Store) Raw() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.data...)
}

// SetRaw overwrites the stored payload verbatim, which lets tests simulate
// corrupt data or writes made by another session.
func (s *Store) SetRaw(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
}

// Saves reports how many successful saves have been applied.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// FailSavesWith makes subsequent saves return the error produced by fn; a nil
// fn restores normal behaviour.
func (s *Store) FailSavesWith(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFn = fn
}
