// Package fs stores blobs as plain files under a root directory.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"custodycore/internal/blob/core"
)

const sidecarSuffix = ".meta"

// Store implements core.Store on the local filesystem. Each object has a JSON
// sidecar next to it holding content type, metadata and a sha256 etag. Data
// is written to a temp file first and renamed over the target.
type Store struct {
	root string
	now  func() time.Time
}

// New returns a store rooted at root, creating the directory when missing.
// An empty root means ./blobdata.
func New(root string) (*Store, error) {
	if root == "" {
		root = "./blobdata"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: abs, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Driver returns the blob driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

// Root is the absolute directory holding the objects.
func (s *Store) Root() string { return s.root }

type sidecar struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ETag        string            `json:"etag"`
	Size        int64             `json:"size"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (s *Store) paths(key string) (clean, data, meta string, err error) {
	clean, err = core.CleanKey(key)
	if err != nil {
		return "", "", "", err
	}
	if strings.HasSuffix(clean, sidecarSuffix) {
		return "", "", "", fmt.Errorf("%w: %q uses the reserved %s suffix", core.ErrInvalidKey, key, sidecarSuffix)
	}
	data = filepath.Join(s.root, filepath.FromSlash(clean))
	return clean, data, data + sidecarSuffix, nil
}

func (s *Store) info(key string, sc sidecar) core.Info {
	return core.Info{
		Key:          key,
		Size:         sc.Size,
		ContentType:  sc.ContentType,
		ETag:         sc.ETag,
		Metadata:     maps.Clone(sc.Metadata),
		LastModified: sc.UpdatedAt,
		URL:          s.fileURL(key),
	}
}

// Put writes the object; existing keys fail with core.ErrExists unless
// opts.Overwrite is set, in which case the original creation time is kept.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	if err := ctx.Err(); err != nil {
		return core.Info{}, err
	}
	clean, data, meta, err := s.paths(key)
	if err != nil {
		return core.Info{}, err
	}
	created := s.now()
	if _, err := os.Stat(data); err == nil {
		if !opts.Overwrite {
			return core.Info{}, fmt.Errorf("%w: %s", core.ErrExists, clean)
		}
		if prev, err := readSidecar(meta); err == nil {
			created = prev.CreatedAt
		}
	}
	dir := filepath.Dir(data)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return core.Info{}, err
	}
	size, etag, err := writeAtomic(dir, data, r)
	if err != nil {
		return core.Info{}, err
	}
	sc := sidecar{
		ContentType: opts.ContentType,
		Metadata:    maps.Clone(opts.Metadata),
		ETag:        etag,
		Size:        size,
		CreatedAt:   created,
		UpdatedAt:   s.now(),
	}
	if err := writeSidecar(meta, sc); err != nil {
		return core.Info{}, err
	}
	return s.info(clean, sc), nil
}

// writeAtomic streams r into a temp file in dir, hashing as it goes, and
// renames it onto target.
func writeAtomic(dir, target string, r io.Reader) (int64, string, error) {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return 0, "", err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, "", err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return 0, "", err
	}
	return size, hex.EncodeToString(h.Sum(nil)), nil
}

func (s *Store) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	clean, data, meta, err := s.paths(key)
	if err != nil {
		return core.Info{}, nil, err
	}
	sc, err := readSidecar(meta)
	if err != nil {
		return core.Info{}, nil, notFound(clean, err)
	}
	file, err := os.Open(data)
	if err != nil {
		return core.Info{}, nil, notFound(clean, err)
	}
	return s.info(clean, sc), file, nil
}

func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	clean, _, meta, err := s.paths(key)
	if err != nil {
		return core.Info{}, err
	}
	sc, err := readSidecar(meta)
	if err != nil {
		return core.Info{}, notFound(clean, err)
	}
	return s.info(clean, sc), nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	_, data, meta, err := s.paths(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(data); err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	_ = os.Remove(meta)
	return true, nil
}

// List walks the root and returns every object whose key starts with prefix,
// sorted by key.
func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	var infos []core.Info
	err := filepath.WalkDir(s.root, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, sidecarSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, strings.TrimSuffix(p, sidecarSuffix))
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		sc, err := readSidecar(p)
		if err != nil {
			return err
		}
		infos = append(infos, s.info(key, sc))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// PresignURL returns a file:// URL for reads. Files carry no expiry.
func (s *Store) PresignURL(_ context.Context, key string, opts core.SignedURLOptions) (string, error) {
	if opts.Method != "" && !strings.EqualFold(opts.Method, "GET") {
		return "", core.ErrUnsupported
	}
	clean, _, meta, err := s.paths(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(meta); err != nil {
		return "", notFound(clean, err)
	}
	return s.fileURL(clean), nil
}

func (s *Store) fileURL(key string) string {
	full := filepath.ToSlash(filepath.Join(s.root, filepath.FromSlash(key)))
	if !strings.HasPrefix(full, "/") {
		full = "/" + full
	}
	return (&url.URL{Scheme: "file", Path: full}).String()
}

func notFound(key string, err error) error {
	if errors.Is(err, iofs.ErrNotExist) {
		return fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	return err
}

func writeSidecar(p string, sc sidecar) error {
	b, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o644)
}

func readSidecar(p string) (sidecar, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return sidecar{}, err
	}
	var sc sidecar
	if err := json.Unmarshal(b, &sc); err != nil {
		return sidecar{}, fmt.Errorf("sidecar %s: %w", filepath.Base(p), err)
	}
	return sc, nil
}
