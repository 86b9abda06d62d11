package memory

import (
	"context"
	"errors"
	"testing"

	"opensilex/pkg/domain"
	"opensilex/testutil"
)

func TestStoreContract(t *testing.T) {
	testutil.DocumentStoreContract(t, func(*testing.T) domain.DocumentStore { return NewStore() })
}

func TestSessionIsolationAndClose(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	sess, _ := store.StartSession(ctx)
	if err := sess.InsertOne(ctx, "move", domain.DocumentRecord{ID: "m1", URI: "http://ex/m1"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if store.Count("move") != 0 {
		t.Fatalf("staged insert leaked before commit")
	}
	if err := sess.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if store.Count("move") != 1 {
		t.Fatalf("expected one committed document")
	}
	if err := sess.InsertOne(ctx, "move", domain.DocumentRecord{ID: "m2"}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	sess, _ = store.StartSession(ctx)
	if err := sess.InsertOne(ctx, "move", domain.DocumentRecord{}); err == nil {
		t.Fatalf("empty id accepted")
	}
}
