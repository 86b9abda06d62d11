package testutil

import (
	"context"
	"testing"

	"opensilex/pkg/domain"
)

const contractCollection = "move"

// DocumentStoreContract runs the behaviour every domain.DocumentStore must
// share. open is called once per subtest and must return an empty store.
func DocumentStoreContract(t *testing.T, open func(t *testing.T) domain.DocumentStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("insert commit and find", func(t *testing.T) {
		store := open(t)
		sess := mustSession(t, store)
		doc := contractDocument("move-1", 3.87, 43.61)
		if err := sess.InsertOne(ctx, contractCollection, doc); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if _, ok, _ := store.FindByID(ctx, contractCollection, "move-1"); ok {
			t.Fatalf("uncommitted document visible")
		}
		if err := sess.Commit(ctx); err != nil {
			t.Fatalf("commit: %v", err)
		}
		got, ok, err := store.FindByID(ctx, contractCollection, "move-1")
		if err != nil || !ok {
			t.Fatalf("committed document missing: ok=%v err=%v", ok, err)
		}
		if got.URI != doc.URI || got.Payload == nil {
			t.Fatalf("unexpected document %+v", got)
		}
		if err := sess.Rollback(ctx); err != nil {
			t.Fatalf("rollback after commit should be a no-op, got %v", err)
		}
		if _, ok, _ := store.FindByID(ctx, "facility", "move-1"); ok {
			t.Fatalf("collections must be isolated")
		}
	})

	t.Run("rollback discards writes", func(t *testing.T) {
		store := open(t)
		sess := mustSession(t, store)
		if err := sess.InsertMany(ctx, contractCollection, []domain.DocumentRecord{contractDocument("move-1", 1, 1), contractDocument("move-2", 2, 2)}); err != nil {
			t.Fatalf("insert many: %v", err)
		}
		if err := sess.Rollback(ctx); err != nil {
			t.Fatalf("rollback: %v", err)
		}
		docs, err := store.Find(ctx, contractCollection, domain.DocumentFilter{})
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if len(docs) != 0 {
			t.Fatalf("rolled back documents persisted: %+v", docs)
		}
	})

	t.Run("duplicate insert fails", func(t *testing.T) {
		store := open(t)
		SeedDocuments(t, store, contractCollection, contractDocument("move-1", 1, 1))
		sess := mustSession(t, store)
		err := sess.InsertOne(ctx, contractCollection, contractDocument("move-1", 2, 2))
		if err == nil {
			err = sess.Commit(ctx)
		}
		_ = sess.Rollback(ctx)
		if !domain.IsDuplicate(err) {
			t.Fatalf("expected duplicate identifier error, got %v", err)
		}
	})

	t.Run("replace upsert and strict", func(t *testing.T) {
		store := open(t)
		sess := mustSession(t, store)
		if err := sess.ReplaceOne(ctx, contractCollection, contractDocument("move-1", 5, 5), true); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if err := sess.Commit(ctx); err != nil {
			t.Fatalf("commit: %v", err)
		}
		if _, ok, _ := store.FindByID(ctx, contractCollection, "move-1"); !ok {
			t.Fatalf("upsert did not create the document")
		}

		sess = mustSession(t, store)
		if err := sess.ReplaceOne(ctx, contractCollection, contractDocument("move-1", 6, 6), false); err != nil {
			t.Fatalf("replace existing: %v", err)
		}
		if err := sess.Commit(ctx); err != nil {
			t.Fatalf("commit: %v", err)
		}
		docs, _ := store.Find(ctx, contractCollection, domain.DocumentFilter{Within: &domain.GeoWithin{Path: "targets_positions.position.point", Box: domain.BoundingBox{MinLon: 5.5, MinLat: 5.5, MaxLon: 6.5, MaxLat: 6.5}}})
		if len(docs) != 1 {
			t.Fatalf("replacement payload not stored: %+v", docs)
		}

		sess = mustSession(t, store)
		err := sess.ReplaceOne(ctx, contractCollection, contractDocument("ghost", 1, 1), false)
		if err == nil {
			err = sess.Commit(ctx)
		}
		_ = sess.Rollback(ctx)
		if !domain.IsNotFound(err) {
			t.Fatalf("strict replace of missing document should fail with not found, got %v", err)
		}
	})

	t.Run("delete reports existence", func(t *testing.T) {
		store := open(t)
		SeedDocuments(t, store, contractCollection, contractDocument("move-1", 1, 1))
		sess := mustSession(t, store)
		existed, err := sess.DeleteOne(ctx, contractCollection, "move-1")
		if err != nil || !existed {
			t.Fatalf("delete existing: existed=%v err=%v", existed, err)
		}
		existed, err = sess.DeleteOne(ctx, contractCollection, "ghost")
		if err != nil || existed {
			t.Fatalf("delete missing: existed=%v err=%v", existed, err)
		}
		if err := sess.Commit(ctx); err != nil {
			t.Fatalf("commit: %v", err)
		}
		if _, ok, _ := store.FindByID(ctx, contractCollection, "move-1"); ok {
			t.Fatalf("document survived delete")
		}
	})

	t.Run("find filters", func(t *testing.T) {
		store := open(t)
		SeedDocuments(t, store, contractCollection,
			contractDocument("move-1", 1, 1),
			contractDocument("move-2", 10, 10),
			contractDocument("move-3", 1.5, 1.5),
		)
		box := domain.BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 2, MaxLat: 2}
		docs, err := store.Find(ctx, contractCollection, domain.DocumentFilter{Within: &domain.GeoWithin{Path: "targets_positions.position.point", Box: box}})
		if err != nil {
			t.Fatalf("find within: %v", err)
		}
		if len(docs) != 2 || docs[0].ID != "move-1" || docs[1].ID != "move-3" {
			t.Fatalf("unexpected geo result %+v", docs)
		}
		docs, _ = store.Find(ctx, contractCollection, domain.ByIDs("move-2", "ghost"))
		if len(docs) != 1 || docs[0].ID != "move-2" {
			t.Fatalf("unexpected id result %+v", docs)
		}
		docs, _ = store.Find(ctx, contractCollection, domain.DocumentFilter{Equals: map[string]any{"targets_positions.target": "http://ex/target/move-3"}})
		if len(docs) != 1 || docs[0].ID != "move-3" {
			t.Fatalf("unexpected equals result %+v", docs)
		}
	})
}

func contractDocument(id string, lon, lat float64) domain.DocumentRecord {
	return domain.DocumentRecord{
		ID:  id,
		URI: "http://ex/id/" + id,
		Payload: domain.Payload{
			"targets_positions": []any{
				map[string]any{
					"target": "http://ex/target/" + id,
					"position": map[string]any{
						"point": map[string]any{"type": "Point", "coordinates": []any{lon, lat}},
					},
				},
			},
		},
	}
}

func mustSession(t *testing.T, store domain.DocumentStore) domain.DocumentSession {
	t.Helper()
	sess, err := store.StartSession(context.Background())
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	return sess
}

// SeedDocuments commits docs into collection in a single session.
func SeedDocuments(t *testing.T, store domain.DocumentStore, collection string, docs ...domain.DocumentRecord) {
	t.Helper()
	ctx := context.Background()
	sess := mustSession(t, store)
	if err := sess.InsertMany(ctx, collection, docs); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := sess.Commit(ctx); err != nil {
		t.Fatalf("seed commit: %v", err)
	}
}
