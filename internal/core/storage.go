package core

import (
	"context"
	"fmt"
	"time"

	"custodycore/internal/blob"
	"custodycore/internal/config"
	"custodycore/internal/infra/persistence/blobdoc"
	"custodycore/internal/infra/persistence/memory"
	"custodycore/internal/infra/persistence/mysql"
	"custodycore/internal/infra/persistence/postgres"
	"custodycore/internal/infra/persistence/redis"
	"custodycore/internal/infra/persistence/sqlite"
	"custodycore/pkg/domain"
)

// OpenDocumentStore selects the document backend from configuration.
//
//	CUSTODY_STORAGE_DRIVER: memory|sqlite|postgres|mysql|redis|blob (default sqlite)
//	CUSTODY_SQLITE_PATH: sqlite file (default ./custody.db)
//	CUSTODY_POSTGRES_DSN, CUSTODY_MYSQL_DSN: server DSNs
//	CUSTODY_REDIS_{ADDR,PASSWORD,DB,KEY}: redis settings
//	CUSTODY_BLOB_DOCUMENT_KEY: object key when driver=blob, stored via CUSTODY_BLOB_*
func OpenDocumentStore(ctx context.Context, cfg config.StorageConfig, blobCfg config.BlobConfig) (domain.DocumentStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = string(domain.StorageSQLite)
	}
	switch domain.StorageDriver(driver) {
	case domain.StorageMemory:
		return memory.NewStore(), nil
	case domain.StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath)
	case domain.StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	case domain.StorageMySQL:
		return mysql.NewStore(ctx, cfg.MySQLDSN)
	case domain.StorageRedis:
		return redis.NewStore(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		})
	case domain.StorageBlob:
		blobs, err := blob.Open(ctx, blobCfg)
		if err != nil {
			return nil, fmt.Errorf("open blob store: %w", err)
		}
		return blobdoc.NewStore(blobs, cfg.BlobKey), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// LockerFor returns the lock guarding signature consumption for backend: a
// redis lock shared by every session when the document lives in redis, and a
// process-local lock otherwise.
func LockerFor(backend domain.DocumentStore, ttl time.Duration) Locker {
	if rs, ok := backend.(*redis.Store); ok {
		return redis.NewLocker(rs.Client(), ttl)
	}
	return NewLocalLocker()
}
