// Package redis keeps the custody document under a single redis key and
// provides the cross-session lock used when signing.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"

	"custodycore/internal/infra/persistence/snapshot"
	"custodycore/pkg/domain"
)

var _ domain.DocumentStore = (*Store)(nil)

const DefaultKey = "custodycore:document"

// Options configures the redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// Store persists the whole document as one JSON value.
type Store struct {
	client *goredis.Client
	key    string
}

// NewStore connects to redis and verifies the connection with PING.
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return NewStoreWithClient(client, opts.Key), nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(client *goredis.Client, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{client: client, key: key}
}

// Driver returns the storage driver identifier.
func (s *Store) Driver() domain.StorageDriver { return domain.StorageRedis }

// Client exposes the connection so the signing lock can share it.
func (s *Store) Client() *goredis.Client { return s.client }

// Load reads the document; a missing key reports domain.ErrNoDocument.
func (s *Store) Load(ctx context.Context) (domain.Document, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Document{}, domain.ErrNoDocument
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("get %s: %w", s.key, err)
	}
	return snapshot.Unmarshal(data)
}

// Save overwrites the key with the serialised document.
func (s *Store) Save(ctx context.Context, doc domain.Document) error {
	data, err := snapshot.Marshal(doc)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", s.key, err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error { return s.client.Close() }

// Locker obtains short-lived redis locks so that two processes cannot sign
// the same token concurrently.
type Locker struct {
	locker *redislock.Client
	ttl    time.Duration
	prefix string
}

// ErrLockNotObtained is returned when the lock is still held after retries.
var ErrLockNotObtained = errors.New("signing lock not obtained")

// NewLocker builds a Locker on client. ttl bounds how long a crashed holder
// can block others.
func NewLocker(client *goredis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{locker: redislock.New(client), ttl: ttl, prefix: "lock:custody:"}
}

// Acquire blocks until the lock for key is held, retrying for up to ttl.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	retry := redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), int(l.ttl/(50*time.Millisecond)))
	lock, err := l.locker.Obtain(ctx, l.prefix+key, l.ttl, &redislock.Options{RetryStrategy: retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrLockNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return func() {
		// Context may already be cancelled by the caller; release on a fresh one.
		_ = lock.Release(context.Background())
	}, nil
}
