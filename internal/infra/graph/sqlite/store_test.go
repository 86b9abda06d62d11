package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"opensilex/internal/infra/graph/sqlgraph"
	"opensilex/pkg/domain"
	"opensilex/pkg/ontology"
	"opensilex/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	schema, err := ontology.Default()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	store, err := NewStore(context.Background(), filepath.Join(t.TempDir(), "graph.db"), sqlgraph.SchemaVocabulary(schema))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreContract(t *testing.T) {
	testutil.GraphStoreContract(t, func(t *testing.T) domain.GraphStore { return newTestStore(t) })
}

func TestPredicatesFollowOntology(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	testutil.SeedGraph(t, store, domain.GraphRecord{
		ID:     "http://ex/id/move.1",
		Type:   domain.ClassMove,
		Fields: domain.Fields{"from": {"http://ex/f/a"}, "custom": {"x"}},
	})
	rows, err := store.DB().QueryContext(ctx, "SELECT predicate FROM graph_quads WHERE subject = ? ORDER BY predicate", "http://ex/id/move.1")
	if err != nil {
		t.Fatalf("query quads: %v", err)
	}
	defer func() { _ = rows.Close() }()
	var preds []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			t.Fatalf("scan: %v", err)
		}
		preds = append(preds, p)
	}
	if len(preds) != 2 || preds[0] != domain.NamespaceOEEV+"from" || preds[1] != "urn:opensilex:field:custom" {
		t.Fatalf("unexpected predicates %v", preds)
	}
	got, ok, err := store.GetByID(ctx, domain.ClassMove, "http://ex/id/move.1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Fields.Get("from") != "http://ex/f/a" || got.Fields.Get("custom") != "x" {
		t.Fatalf("fields not mapped back: %+v", got.Fields)
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "graph.db")
	store, err := NewStore(ctx, path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	testutil.SeedGraph(t, store, domain.GraphRecord{ID: "http://ex/id/fac.1", Type: domain.ClassFacility, Fields: domain.Fields{"name": {"North"}}})
	_ = store.Close()

	reopened, err := NewStore(ctx, path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if reopened.Path() != path || reopened.Driver() != "sqlite" {
		t.Fatalf("unexpected store identity %s %s", reopened.Path(), reopened.Driver())
	}
	if ok, _ := reopened.ExistsAll(ctx, "", []string{"http://ex/id/fac.1"}); !ok {
		t.Fatalf("record lost across reopen")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: graph_resources.uri (1555)")) {
		t.Fatalf("expected message based detection")
	}
	if isUniqueViolation(errors.New("disk I/O error")) || isUniqueViolation(nil) {
		t.Fatalf("unexpected unique violation match")
	}
}

func TestCreateRecordsStaysUnderVariableLimit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	const n = 1000
	recs := make([]domain.GraphRecord, n)
	ids := make([]string, 0, n+200)
	for i := range recs {
		id := fmt.Sprintf("http://ex/id/move.%d", i)
		recs[i] = domain.GraphRecord{ID: id, Type: domain.ClassMove, Fields: domain.Fields{
			"from":        {"http://ex/f/a"},
			"to":          {"http://ex/f/b"},
			"targets":     {"http://ex/p/1", "http://ex/p/2", "http://ex/p/3"},
			"start":       {"2024-01-01T00:00:00Z"},
			"end":         {"2024-01-02T00:00:00Z"},
			"isInstant":   {"false"},
			"author":      {"http://ex/u/1"},
			"description": {fmt.Sprintf("move %d", i)},
		}}
		ids = append(ids, id)
	}
	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.CreateRecords(ctx, "urn:g", recs, n); err != nil {
		t.Fatalf("create records: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	for i := range 200 {
		ids = append(ids, fmt.Sprintf("http://ex/id/ghost.%d", i))
	}
	page, err := store.Search(ctx, domain.GraphQuery{Type: domain.ClassMove, IDs: ids, Limit: n + 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if page.Total != n || len(page.Items) != n {
		t.Fatalf("expected %d matches, got total=%d items=%d", n, page.Total, len(page.Items))
	}
	got, ok, err := store.GetByID(ctx, domain.ClassMove, "http://ex/id/move.999")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if len(got.Fields["targets"]) != 3 || got.Fields.Get("description") != "move 999" {
		t.Fatalf("fields lost: %+v", got.Fields)
	}
}
