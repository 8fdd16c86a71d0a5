// Package blobdoc stores the custody document as a single JSON object in the
// configured blob store (filesystem, memory or S3).
package blobdoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"custodycore/internal/blob/core"
	"custodycore/internal/infra/persistence/snapshot"
	"custodycore/pkg/domain"
)

var _ domain.DocumentStore = (*Store)(nil)

const DefaultKey = "state/document.json"

// Store reads and overwrites one blob key.
type Store struct {
	blobs core.Store
	key   string
}

// NewStore wraps blobs; key defaults to DefaultKey.
func NewStore(blobs core.Store, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{blobs: blobs, key: key}
}

// Driver returns the storage driver identifier.
func (s *Store) Driver() domain.StorageDriver { return domain.StorageBlob }

// Key returns the blob key holding the document.
func (s *Store) Key() string { return s.key }

// Load fetches the document. A missing object reports domain.ErrNoDocument.
func (s *Store) Load(ctx context.Context) (domain.Document, error) {
	_, rc, err := s.blobs.Get(ctx, s.key)
	if errors.Is(err, core.ErrNotFound) {
		return domain.Document{}, domain.ErrNoDocument
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("get %s: %w", s.key, err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return domain.Document{}, fmt.Errorf("read %s: %w", s.key, err)
	}
	return snapshot.Unmarshal(data)
}

// Save overwrites the document object.
func (s *Store) Save(ctx context.Context, doc domain.Document) error {
	data, err := snapshot.Marshal(doc)
	if err != nil {
		return err
	}
	opts := core.PutOptions{ContentType: "application/json", Overwrite: true}
	if _, err := s.blobs.Put(ctx, s.key, bytes.NewReader(data), opts); err != nil {
		return fmt.Errorf("put %s: %w", s.key, err)
	}
	return nil
}

// Close is a no-op; the blob store is owned by the caller.
func (s *Store) Close() error { return nil }
