package core

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"opensilex/pkg/domain"
)

func seedOrphans(t *testing.T, st stores) {
	t.Helper()
	ctx := context.Background()
	repo := newEntityRepo(st)
	if _, err := repo.Create(ctx, domain.LogicalEntity{ID: "test:kept", Fields: domain.Fields{}, Payload: domain.Payload{"k": 1}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	// A graph commit failure after the document commit leaves test:lost behind.
	st.graph.failCommit = errInjected
	if _, err := repo.Create(ctx, domain.LogicalEntity{ID: "test:lost", Fields: domain.Fields{}, Payload: domain.Payload{"k": 2}}); err == nil {
		t.Fatalf("expected graph commit failure")
	}
	st.graph.failCommit = nil

	sess, err := st.docs.StartSession(ctx)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if err := sess.InsertOne(ctx, "move", domain.DocumentRecord{ID: "legacy", Payload: domain.Payload{}}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := sess.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestReconcilerSweep(t *testing.T) {
	ctx := context.Background()
	st := newStores()
	seedOrphans(t, st)
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	r := NewReconciler(st.graph, st.docs, nil, func() time.Time { return at })

	report, err := r.Sweep(ctx, "move", true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if report.Scanned != 3 || !reflect.DeepEqual(report.Orphans, []string{"lost"}) || report.Deleted != 0 {
		t.Fatalf("unexpected dry run report %+v", report)
	}
	if !reflect.DeepEqual(report.Unresolved, []string{"legacy"}) {
		t.Fatalf("document without uri must be reported unresolved: %+v", report.Unresolved)
	}
	if countDocs(t, st, "move", "lost") != 1 {
		t.Fatalf("dry run deleted a document")
	}

	report, err = r.Sweep(ctx, "move", false)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Deleted != 1 || !report.FinishedAt.Equal(at) {
		t.Fatalf("unexpected report %+v", report)
	}
	if countDocs(t, st, "move", "lost") != 0 || countDocs(t, st, "move", "kept") != 1 || countDocs(t, st, "move", "legacy") != 1 {
		t.Fatalf("sweep removed the wrong documents")
	}

	report, err = r.Sweep(ctx, "move", false)
	if err != nil || len(report.Orphans) != 0 || report.Deleted != 0 {
		t.Fatalf("second sweep must be a no-op: %+v %v", report, err)
	}
}

func TestReconcilerRollsBackOnCommitFailure(t *testing.T) {
	ctx := context.Background()
	st := newStores()
	seedOrphans(t, st)
	st.docs.failCommit = errInjected
	logger, logs := observedLogger()
	r := NewReconciler(st.graph, st.docs, logger, nil)
	if _, err := r.Sweep(ctx, "move", false); !errors.Is(err, errInjected) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if st.log.index("doc.rollback") < 0 {
		t.Fatalf("session not rolled back: %v", st.log.list())
	}
	if countDocs(t, st, "move", "lost") != 1 {
		t.Fatalf("failed sweep removed a document")
	}
	if logs.FilterMessage("reconciliation sweep finished").Len() != 0 {
		t.Fatalf("failed sweep logged completion")
	}
}
