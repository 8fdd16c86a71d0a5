package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"custodycore/internal/blob"
	"custodycore/internal/ident"
	"custodycore/internal/infra/persistence/snapshot"
	"custodycore/pkg/domain"
)

// BackupPrefix is the blob key prefix under which backups are written.
const BackupPrefix = "backups/"

// DefaultBackupURLExpiry bounds pre-signed backup download links.
const DefaultBackupURLExpiry = 15 * time.Minute

var errNoBlobStore = errors.New("backup: no blob store configured")

// Backup writes the document as JSON to backups/custody_backup_<date>_<id>.json.
func (s *Service) Backup(ctx context.Context, store blob.Store) (blob.Info, error) {
	if store == nil {
		return blob.Info{}, errNoBlobStore
	}
	var info blob.Info
	err := s.mutate(ctx, "write_backup", func(ctx context.Context) (string, error) {
		data, err := snapshot.Marshal(s.Document())
		if err != nil {
			return "", fmt.Errorf("backup: %w", err)
		}
		key := fmt.Sprintf("%scustody_backup_%s_%s.json", BackupPrefix, s.now().Format("2006-01-02"), ident.NewRecordID()[:8])
		info, err = store.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
			ContentType: "application/json",
			Metadata:    map[string]string{"kind": "custody-backup"},
		})
		if err != nil {
			return key, fmt.Errorf("backup: %w", err)
		}
		return info.Key, nil
	})
	if err != nil {
		return blob.Info{}, err
	}
	s.logger.Info("custody backup written", "key", info.Key, "size", info.Size, "driver", store.Driver())
	return info, nil
}

// ListBackups returns every backup in the blob store, newest key last.
func (s *Service) ListBackups(ctx context.Context, store blob.Store) ([]blob.Info, error) {
	if store == nil {
		return nil, errNoBlobStore
	}
	infos, err := store.List(ctx, BackupPrefix)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	out := infos[:0]
	for _, info := range infos {
		if strings.HasSuffix(info.Key, ".json") {
			out = append(out, info)
		}
	}
	return out, nil
}

// backupKey maps a backup file name to its blob key. Names are single path
// segments; anything else is invalid input.
func backupKey(name string) (string, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), BackupPrefix)
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: backup name %q", domain.ErrInvalidInput, name)
	}
	return BackupPrefix + name, nil
}

// OpenBackup returns a reader over one backup. Missing backups wrap
// blob.ErrNotFound.
func (s *Service) OpenBackup(ctx context.Context, store blob.Store, name string) (blob.Info, io.ReadCloser, error) {
	if store == nil {
		return blob.Info{}, nil, errNoBlobStore
	}
	key, err := backupKey(name)
	if err != nil {
		return blob.Info{}, nil, err
	}
	return store.Get(ctx, key)
}

// BackupURL returns a time-limited download link for a backup. Drivers that
// cannot sign URLs return blob.ErrUnsupported and callers fall back to
// OpenBackup.
func (s *Service) BackupURL(ctx context.Context, store blob.Store, name string, expiry time.Duration) (string, error) {
	if store == nil {
		return "", errNoBlobStore
	}
	key, err := backupKey(name)
	if err != nil {
		return "", err
	}
	if _, err := store.Head(ctx, key); err != nil {
		return "", err
	}
	if expiry <= 0 {
		expiry = DefaultBackupURLExpiry
	}
	return store.PresignURL(ctx, key, blob.SignedURLOptions{Method: "GET", Expiry: expiry})
}

// DeleteBackup removes a backup and reports whether it existed.
func (s *Service) DeleteBackup(ctx context.Context, store blob.Store, name string) (bool, error) {
	if store == nil {
		return false, errNoBlobStore
	}
	key, err := backupKey(name)
	if err != nil {
		return false, err
	}
	existed := false
	err = s.mutate(ctx, "delete_backup", func(ctx context.Context) (string, error) {
		existed, err = store.Delete(ctx, key)
		return key, err
	})
	return existed, err
}
