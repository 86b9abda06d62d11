package testutil

import (
	"context"
	"testing"

	"opensilex/pkg/domain"
)

const (
	contractType  = "http://www.opensilex.org/vocabulary/oeev#Move"
	contractOther = "http://www.opensilex.org/vocabulary/oeso#Facility"
	contractGraph = "http://opensilex.dev/set/moves"
)

// GraphStoreContract runs the behaviour every domain.GraphStore must share.
// open is called once per subtest and must return an empty store.
func GraphStoreContract(t *testing.T, open func(t *testing.T) domain.GraphStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("commit makes records visible", func(t *testing.T) {
		store := open(t)
		tx := mustBegin(t, store)
		rec := contractRecord("http://ex/id/move.1", "2024-01-01T00:00:00Z", "t1", "t2")
		if err := tx.CreateRecord(ctx, contractGraph, rec); err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, ok, _ := store.GetByID(ctx, contractType, rec.ID); ok {
			t.Fatalf("uncommitted record visible outside transaction")
		}
		if got, ok, err := tx.GetByID(ctx, contractType, rec.ID); err != nil || !ok || got.Graph != contractGraph {
			t.Fatalf("transaction should read its own write: %+v ok=%v err=%v", got, ok, err)
		}
		if err := tx.Commit(ctx); err != nil {
			t.Fatalf("commit: %v", err)
		}
		got, ok, err := store.GetByID(ctx, contractType, rec.ID)
		if err != nil || !ok {
			t.Fatalf("committed record missing: ok=%v err=%v", ok, err)
		}
		if got.Graph != contractGraph || got.Type != contractType {
			t.Fatalf("unexpected record %+v", got)
		}
		if targets := got.Fields["targets"]; len(targets) != 2 || targets[0] != "t1" || targets[1] != "t2" {
			t.Fatalf("multi-valued field lost: %v", targets)
		}
		if _, ok, _ := store.GetByID(ctx, contractOther, rec.ID); ok {
			t.Fatalf("record returned for the wrong rdf:type")
		}
		if err := tx.Rollback(ctx, nil); err != nil {
			t.Fatalf("rollback after commit should be a no-op, got %v", err)
		}
		if _, ok, _ := store.GetByID(ctx, contractType, rec.ID); !ok {
			t.Fatalf("rollback after commit removed data")
		}
	})

	t.Run("rollback discards writes", func(t *testing.T) {
		store := open(t)
		tx := mustBegin(t, store)
		if err := tx.CreateRecord(ctx, contractGraph, contractRecord("http://ex/id/move.1", "2024-01-01T00:00:00Z")); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := tx.Rollback(ctx, nil); err != nil {
			t.Fatalf("rollback: %v", err)
		}
		if ok, _ := store.ExistsAny(ctx, "", []string{"http://ex/id/move.1"}); ok {
			t.Fatalf("rolled back record persisted")
		}
	})

	t.Run("duplicate create fails", func(t *testing.T) {
		store := open(t)
		seedGraph(t, store, contractRecord("http://ex/id/move.1", "2024-01-01T00:00:00Z"))
		tx := mustBegin(t, store)
		err := tx.CreateRecord(ctx, contractGraph, contractRecord("http://ex/id/move.1", "2024-01-02T00:00:00Z"))
		if err == nil {
			err = tx.Commit(ctx)
		}
		_ = tx.Rollback(ctx, err)
		if !domain.IsDuplicate(err) {
			t.Fatalf("expected duplicate identifier error, got %v", err)
		}
	})

	t.Run("update replaces fields", func(t *testing.T) {
		store := open(t)
		seedGraph(t, store, contractRecord("http://ex/id/move.1", "2024-01-01T00:00:00Z", "t1"))
		tx := mustBegin(t, store)
		upd := contractRecord("http://ex/id/move.1", "2024-06-01T00:00:00Z")
		upd.Graph = ""
		if err := tx.UpdateRecord(ctx, upd); err != nil {
			t.Fatalf("update: %v", err)
		}
		if err := tx.Commit(ctx); err != nil {
			t.Fatalf("commit: %v", err)
		}
		got, _, _ := store.GetByID(ctx, contractType, upd.ID)
		if got.Fields.Get("start") != "2024-06-01T00:00:00Z" || len(got.Fields["targets"]) != 0 {
			t.Fatalf("fields not replaced: %+v", got.Fields)
		}
		if got.Graph != contractGraph {
			t.Fatalf("update without graph should keep the existing graph, got %q", got.Graph)
		}
	})

	t.Run("update and delete of missing records fail", func(t *testing.T) {
		store := open(t)
		for name, fn := range map[string]func(domain.GraphTx) error{
			"update": func(tx domain.GraphTx) error {
				return tx.UpdateRecord(ctx, contractRecord("http://ex/id/ghost", "2024-01-01T00:00:00Z"))
			},
			"delete": func(tx domain.GraphTx) error { return tx.DeleteRecord(ctx, contractType, "http://ex/id/ghost") },
		} {
			tx := mustBegin(t, store)
			err := fn(tx)
			if err == nil {
				err = tx.Commit(ctx)
			}
			_ = tx.Rollback(ctx, err)
			if !domain.IsNotFound(err) {
				t.Fatalf("%s: expected not found, got %v", name, err)
			}
		}
	})

	t.Run("delete removes record", func(t *testing.T) {
		store := open(t)
		seedGraph(t, store, contractRecord("http://ex/id/move.1", "2024-01-01T00:00:00Z"))
		tx := mustBegin(t, store)
		if err := tx.DeleteRecord(ctx, contractType, "http://ex/id/move.1"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, ok, _ := tx.GetByID(ctx, contractType, "http://ex/id/move.1"); ok {
			t.Fatalf("deleted record still visible inside transaction")
		}
		if err := tx.Commit(ctx); err != nil {
			t.Fatalf("commit: %v", err)
		}
		if _, ok, _ := store.GetByID(ctx, contractType, "http://ex/id/move.1"); ok {
			t.Fatalf("record survived delete")
		}
	})

	t.Run("batch create and lookups", func(t *testing.T) {
		store := open(t)
		var recs []domain.GraphRecord
		for _, id := range []string{"http://ex/id/move.3", "http://ex/id/move.1", "http://ex/id/move.2"} {
			recs = append(recs, contractRecord(id, "2024-01-0"+id[len(id)-1:]+"T00:00:00Z"))
		}
		tx := mustBegin(t, store)
		if err := tx.CreateRecords(ctx, contractGraph, recs, 2); err != nil {
			t.Fatalf("create many: %v", err)
		}
		if err := tx.Commit(ctx); err != nil {
			t.Fatalf("commit: %v", err)
		}
		got, err := store.GetByIDs(ctx, contractType, []string{"http://ex/id/move.2", "http://ex/id/ghost", "http://ex/id/move.3"})
		if err != nil {
			t.Fatalf("get many: %v", err)
		}
		if len(got) != 2 || got[0].ID != "http://ex/id/move.2" || got[1].ID != "http://ex/id/move.3" {
			t.Fatalf("unexpected GetByIDs result %+v", got)
		}
		anyOK, _ := store.ExistsAny(ctx, contractGraph, []string{"http://ex/id/ghost", "http://ex/id/move.1"})
		allOK, _ := store.ExistsAll(ctx, contractGraph, []string{"http://ex/id/ghost", "http://ex/id/move.1"})
		if !anyOK || allOK {
			t.Fatalf("ExistsAny=%v ExistsAll=%v", anyOK, allOK)
		}
		if ok, _ := store.ExistsAny(ctx, "http://other/graph", []string{"http://ex/id/move.1"}); ok {
			t.Fatalf("ExistsAny ignored graph restriction")
		}
	})

	t.Run("search filters orders and paginates", func(t *testing.T) {
		store := open(t)
		seedGraph(t, store,
			contractRecord("http://ex/id/move.1", "2024-01-01T00:00:00Z", "t1"),
			contractRecord("http://ex/id/move.2", "2024-02-01T00:00:00Z", "t2"),
			contractRecord("http://ex/id/move.3", "2024-03-01T00:00:00Z", "t1"),
			domain.GraphRecord{ID: "http://ex/id/fac.1", Type: contractOther, Fields: domain.Fields{"name": {"North"}}},
		)
		q := domain.GraphQuery{Type: contractType, OrderBy: []domain.OrderBy{{Field: "start", Desc: true}}}.
			Where("targets", domain.OpIn, "t1")
		page, err := store.Search(ctx, q)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if page.Total != 2 || len(page.Items) != 2 || page.Items[0].ID != "http://ex/id/move.3" {
			t.Fatalf("unexpected search page %+v", page)
		}
		q.Limit, q.Offset = 1, 1
		page, err = store.Search(ctx, q)
		if err != nil {
			t.Fatalf("search page: %v", err)
		}
		if page.Total != 2 || len(page.Items) != 1 || page.Items[0].ID != "http://ex/id/move.1" {
			t.Fatalf("unexpected second page %+v", page)
		}
		page, _ = store.Search(ctx, domain.GraphQuery{Type: contractType, IDs: []string{}})
		if page.Total != 0 {
			t.Fatalf("empty id restriction should match nothing, got %d", page.Total)
		}
	})
}

func contractRecord(id, start string, targets ...string) domain.GraphRecord {
	fields := domain.Fields{"start": {start}}
	if len(targets) > 0 {
		fields["targets"] = targets
	}
	return domain.GraphRecord{ID: id, Type: contractType, Graph: contractGraph, Fields: fields}
}

func mustBegin(t *testing.T, store domain.GraphStore) domain.GraphTx {
	t.Helper()
	tx, err := store.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	return tx
}

// SeedGraph commits recs in a single transaction.
func SeedGraph(t *testing.T, store domain.GraphStore, recs ...domain.GraphRecord) {
	seedGraph(t, store, recs...)
}

func seedGraph(t *testing.T, store domain.GraphStore, recs ...domain.GraphRecord) {
	t.Helper()
	ctx := context.Background()
	tx := mustBegin(t, store)
	for _, rec := range recs {
		if err := tx.CreateRecord(ctx, rec.Graph, rec); err != nil {
			t.Fatalf("seed %s: %v", rec.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("seed commit: %v", err)
	}
}
