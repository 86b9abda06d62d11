package core

import (
	"context"
	"errors"
	"sync"

	docmemory "opensilex/internal/infra/document/memory"
	graphmemory "opensilex/internal/infra/graph/memory"
	"opensilex/pkg/domain"
)

var errInjected = errors.New("injected failure")

// journal records store calls in order across both fakes.
type journal struct {
	mu     sync.Mutex
	events []string
}

func (j *journal) add(event string) {
	j.mu.Lock()
	j.events = append(j.events, event)
	j.mu.Unlock()
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.events...)
}

func (j *journal) index(event string) int {
	for i, e := range j.list() {
		if e == event {
			return i
		}
	}
	return -1
}

// fakeGraph wraps the memory graph store with call counting and failure
// injection.
type fakeGraph struct {
	*graphmemory.Store
	log *journal

	mu             sync.Mutex
	begins         int
	failBegin      error
	failCreateID   string
	failUpdate     error
	failCommit     error
	failRollback   error
	rollbackCtxErr error
}

func newFakeGraph(log *journal) *fakeGraph {
	return &fakeGraph{Store: graphmemory.NewStore(), log: log}
}

func (g *fakeGraph) Begin(ctx context.Context) (domain.GraphTx, error) {
	g.mu.Lock()
	g.begins++
	g.mu.Unlock()
	g.log.add("graph.begin")
	if g.failBegin != nil {
		return nil, g.failBegin
	}
	tx, err := g.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &fakeGraphTx{GraphTx: tx, g: g}, nil
}

func (g *fakeGraph) beginCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.begins
}

type fakeGraphTx struct {
	domain.GraphTx
	g *fakeGraph
}

func (tx *fakeGraphTx) CreateRecord(ctx context.Context, graph string, rec domain.GraphRecord) error {
	tx.g.log.add("graph.create")
	if rec.ID == tx.g.failCreateID {
		return errInjected
	}
	return tx.GraphTx.CreateRecord(ctx, graph, rec)
}

// CreateRecords stages the records preceding the failing id before failing.
func (tx *fakeGraphTx) CreateRecords(ctx context.Context, graph string, recs []domain.GraphRecord, batchSize int) error {
	tx.g.log.add("graph.create_many")
	for i, rec := range recs {
		if rec.ID == tx.g.failCreateID {
			if err := tx.GraphTx.CreateRecords(ctx, graph, recs[:i], batchSize); err != nil {
				return err
			}
			return errInjected
		}
	}
	return tx.GraphTx.CreateRecords(ctx, graph, recs, batchSize)
}

func (tx *fakeGraphTx) UpdateRecord(ctx context.Context, rec domain.GraphRecord) error {
	tx.g.log.add("graph.update")
	if tx.g.failUpdate != nil {
		return tx.g.failUpdate
	}
	return tx.GraphTx.UpdateRecord(ctx, rec)
}

func (tx *fakeGraphTx) Commit(ctx context.Context) error {
	tx.g.log.add("graph.commit")
	if tx.g.failCommit != nil {
		return tx.g.failCommit
	}
	return tx.GraphTx.Commit(ctx)
}

func (tx *fakeGraphTx) Rollback(ctx context.Context, cause error) error {
	tx.g.log.add("graph.rollback")
	tx.g.rollbackCtxErr = ctx.Err()
	if err := tx.GraphTx.Rollback(ctx, cause); err != nil {
		return err
	}
	return tx.g.failRollback
}

// fakeDocs wraps the memory document store with session counting and
// failure injection.
type fakeDocs struct {
	*docmemory.Store
	log *journal

	mu           sync.Mutex
	sessions     int
	failSession  error
	failInsert   error
	failReplace  error
	failDelete   error
	failCommit   error
	failRollback error
}

func newFakeDocs(log *journal) *fakeDocs {
	return &fakeDocs{Store: docmemory.NewStore(), log: log}
}

func (d *fakeDocs) StartSession(ctx context.Context) (domain.DocumentSession, error) {
	d.mu.Lock()
	d.sessions++
	d.mu.Unlock()
	d.log.add("doc.begin")
	if d.failSession != nil {
		return nil, d.failSession
	}
	sess, err := d.Store.StartSession(ctx)
	if err != nil {
		return nil, err
	}
	return &fakeSession{DocumentSession: sess, d: d}, nil
}

func (d *fakeDocs) sessionCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions
}

type fakeSession struct {
	domain.DocumentSession
	d *fakeDocs
}

func (s *fakeSession) InsertOne(ctx context.Context, collection string, doc domain.DocumentRecord) error {
	s.d.log.add("doc.insert")
	if s.d.failInsert != nil {
		return s.d.failInsert
	}
	return s.DocumentSession.InsertOne(ctx, collection, doc)
}

func (s *fakeSession) InsertMany(ctx context.Context, collection string, docs []domain.DocumentRecord) error {
	s.d.log.add("doc.insert_many")
	if s.d.failInsert != nil {
		return s.d.failInsert
	}
	return s.DocumentSession.InsertMany(ctx, collection, docs)
}

func (s *fakeSession) ReplaceOne(ctx context.Context, collection string, doc domain.DocumentRecord, upsert bool) error {
	s.d.log.add("doc.replace")
	if s.d.failReplace != nil {
		return s.d.failReplace
	}
	return s.DocumentSession.ReplaceOne(ctx, collection, doc, upsert)
}

func (s *fakeSession) DeleteOne(ctx context.Context, collection, id string) (bool, error) {
	s.d.log.add("doc.delete")
	if s.d.failDelete != nil {
		return false, s.d.failDelete
	}
	return s.DocumentSession.DeleteOne(ctx, collection, id)
}

func (s *fakeSession) Commit(ctx context.Context) error {
	s.d.log.add("doc.commit")
	if s.d.failCommit != nil {
		return s.d.failCommit
	}
	return s.DocumentSession.Commit(ctx)
}

func (s *fakeSession) Rollback(ctx context.Context) error {
	s.d.log.add("doc.rollback")
	if err := s.DocumentSession.Rollback(ctx); err != nil {
		return err
	}
	return s.d.failRollback
}

type stores struct {
	log   *journal
	graph *fakeGraph
	docs  *fakeDocs
}

func newStores() stores {
	log := &journal{}
	return stores{log: log, graph: newFakeGraph(log), docs: newFakeDocs(log)}
}
