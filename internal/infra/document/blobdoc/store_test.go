package blobdoc

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"opensilex/internal/blob"
	"opensilex/pkg/domain"
	"opensilex/testutil"
)

func TestStoreContractMemory(t *testing.T) {
	testutil.DocumentStoreContract(t, func(*testing.T) domain.DocumentStore { return New(blob.NewMemory()) })
}

func TestStoreContractFilesystem(t *testing.T) {
	testutil.DocumentStoreContract(t, func(t *testing.T) domain.DocumentStore {
		fs, err := blob.NewFilesystem(t.TempDir())
		if err != nil {
			t.Fatalf("fs: %v", err)
		}
		return New(fs)
	})
}

func TestStoreContractS3Mock(t *testing.T) {
	testutil.DocumentStoreContract(t, func(*testing.T) domain.DocumentStore { return New(blob.NewMockS3ForTests()) })
}

func TestKeyRoundTrip(t *testing.T) {
	k := key("move", "a b/c")
	if strings.Count(k, "/") != 1 {
		t.Fatalf("id separator leaked into key %q", k)
	}
	id, ok := idFromKey("move", k)
	if !ok || id != "a b/c" {
		t.Fatalf("idFromKey(%q) = %q, %v", k, id, ok)
	}
	if _, ok := idFromKey("move", "facility/x.json"); ok {
		t.Fatalf("foreign collection key accepted")
	}
	if _, ok := idFromKey("move", "move/x.txt"); ok {
		t.Fatalf("non-document key accepted")
	}
}

// failingStore fails the first Put on failKey.
type failingStore struct {
	blob.Store
	failKey string
}

func (f *failingStore) Put(ctx context.Context, k string, r io.Reader, opts blob.PutOptions) (blob.Info, error) {
	if k == f.failKey {
		return blob.Info{}, errors.New("disk full")
	}
	return f.Store.Put(ctx, k, r, opts)
}

func TestCommitRestoresBeforeImages(t *testing.T) {
	ctx := context.Background()
	inner := blob.NewMemory()
	seed := New(inner)
	testutil.SeedDocuments(t, seed, "move", domain.DocumentRecord{ID: "m1", URI: "http://ex/m1", Payload: domain.Payload{"v": "old"}})

	store := New(&failingStore{Store: inner, failKey: key("move", "m3")})
	sess, err := store.StartSession(ctx)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if err := sess.ReplaceOne(ctx, "move", domain.DocumentRecord{ID: "m1", URI: "http://ex/m1", Payload: domain.Payload{"v": "new"}}, false); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := sess.InsertOne(ctx, "move", domain.DocumentRecord{ID: "m2", URI: "http://ex/m2"}); err != nil {
		t.Fatalf("insert m2: %v", err)
	}
	if err := sess.InsertOne(ctx, "move", domain.DocumentRecord{ID: "m3", URI: "http://ex/m3"}); err != nil {
		t.Fatalf("insert m3: %v", err)
	}
	if err := sess.Commit(ctx); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected commit failure, got %v", err)
	}

	got, ok, err := seed.FindByID(ctx, "move", "m1")
	if err != nil || !ok || got.Payload["v"] != "old" {
		t.Fatalf("m1 not restored: %+v ok=%v err=%v", got, ok, err)
	}
	if _, ok, _ := seed.FindByID(ctx, "move", "m2"); ok {
		t.Fatalf("m2 should have been removed by compensation")
	}
}

func TestSessionClosed(t *testing.T) {
	ctx := context.Background()
	store := New(blob.NewMemory())
	sess, _ := store.StartSession(ctx)
	if err := sess.Commit(ctx); err != nil {
		t.Fatalf("empty commit: %v", err)
	}
	if err := sess.InsertOne(ctx, "move", domain.DocumentRecord{ID: "m1"}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if store.Driver() != "blob:memory" {
		t.Fatalf("unexpected driver %q", store.Driver())
	}
}
