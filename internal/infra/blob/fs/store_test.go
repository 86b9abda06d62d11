package fs

import (
	"bytes"
	"context"
	"os"
	"testing"

	"opensilex/internal/blob/core"
	"opensilex/testutil"
)

func TestStoreContract(t *testing.T) {
	testutil.BlobStoreContract(t, func(t *testing.T) core.Store {
		s, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		return s
	})
}

func TestSanitizeKey(t *testing.T) {
	for _, bad := range []string{"", "  ", "../x", "a/../../b", "/abs", "x.meta"} {
		if _, err := sanitizeKey(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
	if got, err := sanitizeKey("move//a.json"); err != nil || got != "move/a.json" {
		t.Fatalf("unexpected clean key %q err=%v", got, err)
	}
}

func TestOverwriteKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := s.Put(ctx, "k", bytes.NewReader([]byte("1")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, metaPath, _ := s.pathFor("k")
	before, err := readMeta(metaPath)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if _, err := s.Put(ctx, "k", bytes.NewReader([]byte("22")), core.PutOptions{Overwrite: true, Metadata: map[string]string{"uri": "http://ex/k"}}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	after, _ := readMeta(metaPath)
	if !after.CreatedAt.Equal(before.CreatedAt) || after.Size != 2 || after.Metadata["uri"] != "http://ex/k" {
		t.Fatalf("unexpected sidecar after overwrite %+v", after)
	}
	entries, _ := os.ReadDir(s.Root())
	if len(entries) != 2 {
		t.Fatalf("expected blob and sidecar only, got %d entries", len(entries))
	}
}

func TestNewDefaultsRoot(t *testing.T) {
	wd, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(wd) })
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	s, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Root() != "./blobdata" || s.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected defaults %s %s", s.Root(), s.Driver())
	}
}
