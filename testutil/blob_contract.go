package testutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"opensilex/internal/blob/core"
)

// BlobStoreContract runs the behaviour every core.Store backend must share.
func BlobStoreContract(t *testing.T, open func(t *testing.T) core.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("put get head", func(t *testing.T) {
		store := open(t)
		info, err := store.Put(ctx, "move/a.json", bytes.NewReader([]byte(`{"a":1}`)), core.PutOptions{ContentType: "application/json"})
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		if info.Key != "move/a.json" || info.Size != 7 {
			t.Fatalf("unexpected info %+v", info)
		}
		got, rc, err := store.Get(ctx, "move/a.json")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		body, _ := io.ReadAll(rc)
		_ = rc.Close()
		if string(body) != `{"a":1}` || got.ContentType != "application/json" {
			t.Fatalf("unexpected blob %q %+v", body, got)
		}
		if _, err := store.Head(ctx, "move/a.json"); err != nil {
			t.Fatalf("head: %v", err)
		}
	})

	t.Run("create only unless overwrite", func(t *testing.T) {
		store := open(t)
		if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("one")), core.PutOptions{}); err != nil {
			t.Fatalf("put: %v", err)
		}
		if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("two")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
			t.Fatalf("expected ErrExists, got %v", err)
		}
		if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("three")), core.PutOptions{Overwrite: true}); err != nil {
			t.Fatalf("overwrite: %v", err)
		}
		_, rc, err := store.Get(ctx, "k")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		body, _ := io.ReadAll(rc)
		_ = rc.Close()
		if string(body) != "three" {
			t.Fatalf("overwrite not applied, got %q", body)
		}
	})

	t.Run("missing keys", func(t *testing.T) {
		store := open(t)
		if _, _, err := store.Get(ctx, "ghost"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("get missing: expected ErrNotFound, got %v", err)
		}
		if _, err := store.Head(ctx, "ghost"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("head missing: expected ErrNotFound, got %v", err)
		}
		existed, err := store.Delete(ctx, "ghost")
		if err != nil || existed {
			t.Fatalf("delete missing: existed=%v err=%v", existed, err)
		}
	})

	t.Run("delete and list", func(t *testing.T) {
		store := open(t)
		for _, key := range []string{"move/b.json", "move/a.json", "facility/x.json"} {
			if _, err := store.Put(ctx, key, bytes.NewReader([]byte("{}")), core.PutOptions{}); err != nil {
				t.Fatalf("put %s: %v", key, err)
			}
		}
		infos, err := store.List(ctx, "move/")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(infos) != 2 || infos[0].Key != "move/a.json" || infos[1].Key != "move/b.json" {
			t.Fatalf("unexpected listing %+v", infos)
		}
		existed, err := store.Delete(ctx, "move/a.json")
		if err != nil || !existed {
			t.Fatalf("delete: existed=%v err=%v", existed, err)
		}
		infos, _ = store.List(ctx, "")
		if len(infos) != 2 {
			t.Fatalf("expected 2 blobs after delete, got %+v", infos)
		}
	})
}
