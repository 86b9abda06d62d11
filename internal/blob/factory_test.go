package blob

import (
	"context"
	"strings"
	"testing"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OPENSILEX_BLOB_DRIVER", "")
	t.Setenv("OPENSILEX_BLOB_S3_PATH_STYLE", "TRUE")
	t.Setenv("OPENSILEX_BLOB_S3_BUCKET", "bucket")
	cfg := ConfigFromEnv()
	if cfg.Driver != DriverFilesystem {
		t.Fatalf("expected fs default, got %s", cfg.Driver)
	}
	if !cfg.S3.PathStyle || cfg.S3.Bucket != "bucket" {
		t.Fatalf("unexpected s3 config %+v", cfg.S3)
	}
}

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	fsStore, err := Open(ctx, Config{Driver: DriverFilesystem, FSRoot: t.TempDir()})
	if err != nil || fsStore.Driver() != DriverFilesystem {
		t.Fatalf("fs open: %v", err)
	}
	mem, err := Open(ctx, Config{Driver: DriverMemory})
	if err != nil || mem.Driver() != DriverMemory {
		t.Fatalf("memory open: %v", err)
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil || !strings.Contains(err.Error(), "OPENSILEX_BLOB_S3_BUCKET") {
		t.Fatalf("expected missing bucket error, got %v", err)
	}
	s3, err := Open(ctx, Config{Driver: DriverS3, S3: S3Config{Bucket: "b", Endpoint: "http://localhost:9000", AccessKeyID: "a", SecretAccessKey: "s"}})
	if err != nil || s3.Driver() != DriverS3 {
		t.Fatalf("s3 open: %v", err)
	}
	if _, err := Open(ctx, Config{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if NewMockS3ForTests().Driver() != DriverS3 {
		t.Fatalf("mock should report the s3 driver")
	}
}
