package memory

import (
	"bytes"
	"context"
	"testing"

	"opensilex/internal/blob/core"
	"opensilex/testutil"
)

func TestStoreContract(t *testing.T) {
	testutil.BlobStoreContract(t, func(*testing.T) core.Store { return New() })
}

func TestPutHonoursCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Put(ctx, "k", bytes.NewReader(nil), core.PutOptions{}); err == nil {
		t.Fatalf("expected canceled context error")
	}
}
