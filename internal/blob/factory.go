package blob

import (
	"context"
	"fmt"

	"custodycore/internal/config"
	"custodycore/internal/infra/blob/fs"
	"custodycore/internal/infra/blob/memory"
	"custodycore/internal/infra/blob/s3"
)

// Open selects a blob Store implementation from configuration.
//
//	CUSTODY_BLOB_DRIVER: fs|s3|memory (default fs)
//	CUSTODY_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	CUSTODY_BLOB_S3_{BUCKET,REGION,ENDPOINT,PATH_STYLE}: s3 settings
func Open(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case DriverS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("CUSTODY_BLOB_S3_BUCKET required for s3 driver")
		}
		return s3.New(ctx, s3.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
