package blob

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Config selects and parameterizes a blob backend.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// ConfigFromEnv reads the blob configuration:
//
//	OPENSILEX_BLOB_DRIVER: fs|s3|memory (default fs)
//	OPENSILEX_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	OPENSILEX_BLOB_S3_BUCKET: bucket when driver=s3 (required)
//	OPENSILEX_BLOB_S3_REGION: region (default us-east-1)
//	OPENSILEX_BLOB_S3_ENDPOINT: custom endpoint, e.g. MinIO
//	OPENSILEX_BLOB_S3_PATH_STYLE: true|false (default false)
//
// Credentials come from the standard AWS_* variables or shared config.
func ConfigFromEnv() Config {
	driver := os.Getenv("OPENSILEX_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	return Config{
		Driver: Driver(driver),
		FSRoot: os.Getenv("OPENSILEX_BLOB_FS_ROOT"),
		S3: S3Config{
			Bucket:    os.Getenv("OPENSILEX_BLOB_S3_BUCKET"),
			Region:    os.Getenv("OPENSILEX_BLOB_S3_REGION"),
			Endpoint:  os.Getenv("OPENSILEX_BLOB_S3_ENDPOINT"),
			PathStyle: strings.EqualFold(os.Getenv("OPENSILEX_BLOB_S3_PATH_STYLE"), "true"),
		},
	}
}

// Open constructs the Store selected by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverFilesystem, "":
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("OPENSILEX_BLOB_S3_BUCKET required for s3 driver")
		}
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}
