package s3

import (
	"context"
	"strings"
	"testing"

	"opensilex/internal/blob/core"
	"opensilex/testutil"
)

func TestMockStoreContract(t *testing.T) {
	testutil.BlobStoreContract(t, func(*testing.T) core.Store { return NewMockForTests() })
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil || !strings.Contains(err.Error(), "bucket") {
		t.Fatalf("expected bucket error, got %v", err)
	}
}

func TestNewWithStaticCredentials(t *testing.T) {
	s, err := New(context.Background(), Config{Bucket: "b", Endpoint: "http://localhost:9000", PathStyle: true, AccessKeyID: "a", SecretAccessKey: "s"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Bucket() != "b" || s.Driver() != core.DriverS3 {
		t.Fatalf("unexpected store %s %s", s.Bucket(), s.Driver())
	}
}

func TestDecodeChunked(t *testing.T) {
	if got, ok := decodeChunked([]byte("5\r\nhello\r\n0\r\n\r\n")); !ok || string(got) != "hello" {
		t.Fatalf("unexpected decode %q ok=%v", got, ok)
	}
	if _, ok := decodeChunked([]byte("plain body")); ok {
		t.Fatalf("plain body should not decode")
	}
}
