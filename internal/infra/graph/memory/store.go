// Package memory provides an in-memory graph store used for tests and
// ephemeral environments.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"opensilex/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.GraphStore = (*Store)(nil)
	_ domain.GraphTx    = (*transaction)(nil)
)

// ErrTxClosed is returned when a committed or rolled back transaction is used.
var ErrTxClosed = errors.New("memory graph: transaction already finished")

type opKind int

const (
	opCreate opKind = iota
	opUpdate
	opDelete
)

type op struct {
	kind opKind
	rec  domain.GraphRecord
}

type graphState map[string]domain.GraphRecord

func (s graphState) clone() graphState {
	out := make(graphState, len(s))
	for id, rec := range s {
		out[id] = rec.Clone()
	}
	return out
}

// apply mutates the state with o, reporting conflicts with concurrent commits.
func (s graphState) apply(o op) error {
	existing, ok := s[o.rec.ID]
	switch o.kind {
	case opCreate:
		if ok {
			return domain.DuplicateIdentifierError{ID: o.rec.ID}
		}
		s[o.rec.ID] = o.rec.Clone()
	case opUpdate:
		if !ok || existing.Type != o.rec.Type {
			return domain.NotFoundError{Type: o.rec.Type, ID: o.rec.ID}
		}
		rec := o.rec.Clone()
		if rec.Graph == "" {
			rec.Graph = existing.Graph
		}
		s[o.rec.ID] = rec
	case opDelete:
		if !ok || existing.Type != o.rec.Type {
			return domain.NotFoundError{Type: o.rec.Type, ID: o.rec.ID}
		}
		delete(s, o.rec.ID)
	}
	return nil
}

// Store keeps graph records keyed by URI. Transactions work on a private copy
// of the state and replay their operations on commit, so no lock is held while
// a transaction is open.
type Store struct {
	mu    sync.RWMutex
	state graphState
}

// NewStore constructs an empty in-memory graph store.
func NewStore() *Store {
	return &Store{state: make(graphState)}
}

// Driver identifies the backend.
func (s *Store) Driver() string { return "memory" }

// Records returns a sorted copy of every committed record.
func (s *Store) Records() []domain.GraphRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.GraphRecord, 0, len(s.state))
	for _, rec := range s.state {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Begin opens a transaction over a snapshot of the committed state.
func (s *Store) Begin(ctx context.Context) (domain.GraphTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	view := s.state.clone()
	s.mu.RUnlock()
	return &transaction{store: s, view: view}, nil
}

// GetByID returns the committed record with id and rdf:type.
func (s *Store) GetByID(_ context.Context, rdfType, id string) (domain.GraphRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.state[id]
	if !ok || (rdfType != "" && rec.Type != rdfType) {
		return domain.GraphRecord{}, false, nil
	}
	return rec.Clone(), true, nil
}

// GetByIDs returns the existing records among ids, in input order.
func (s *Store) GetByIDs(_ context.Context, rdfType string, ids []string) ([]domain.GraphRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.GraphRecord, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if rec, ok := s.state[id]; ok && (rdfType == "" || rec.Type == rdfType) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// Search evaluates q against the committed state.
func (s *Store) Search(_ context.Context, q domain.GraphQuery) (domain.Page[domain.GraphRecord], error) {
	s.mu.RLock()
	records := make([]domain.GraphRecord, 0, len(s.state))
	for _, rec := range s.state {
		records = append(records, rec)
	}
	page := domain.ApplyQuery(records, q)
	s.mu.RUnlock()
	return page, nil
}

// ExistsAny reports whether any of ids exists in graph (all graphs when empty).
func (s *Store) ExistsAny(_ context.Context, graph string, ids []string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range ids {
		if s.has(graph, id) {
			return true, nil
		}
	}
	return false, nil
}

// ExistsAll reports whether every id exists in graph (all graphs when empty).
func (s *Store) ExistsAll(_ context.Context, graph string, ids []string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range ids {
		if !s.has(graph, id) {
			return false, nil
		}
	}
	return true, nil
}

func (s *Store) has(graph, id string) bool {
	rec, ok := s.state[id]
	return ok && (graph == "" || rec.Graph == graph)
}

type transaction struct {
	store *Store
	view  graphState
	ops   []op
	done  bool
}

func (tx *transaction) CreateRecord(ctx context.Context, graph string, rec domain.GraphRecord) error {
	if tx.done {
		return ErrTxClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		return domain.InvalidIdentifierError{Reason: "empty"}
	}
	if graph != "" {
		rec.Graph = graph
	}
	o := op{kind: opCreate, rec: rec.Clone()}
	if err := tx.view.apply(o); err != nil {
		return err
	}
	tx.ops = append(tx.ops, o)
	return nil
}

func (tx *transaction) CreateRecords(ctx context.Context, graph string, recs []domain.GraphRecord, _ int) error {
	for _, rec := range recs {
		if err := tx.CreateRecord(ctx, graph, rec); err != nil {
			return fmt.Errorf("create %s: %w", rec.ID, err)
		}
	}
	return nil
}

func (tx *transaction) UpdateRecord(ctx context.Context, rec domain.GraphRecord) error {
	if tx.done {
		return ErrTxClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	o := op{kind: opUpdate, rec: rec.Clone()}
	if err := tx.view.apply(o); err != nil {
		return err
	}
	tx.ops = append(tx.ops, o)
	return nil
}

func (tx *transaction) DeleteRecord(ctx context.Context, rdfType, id string) error {
	if tx.done {
		return ErrTxClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	o := op{kind: opDelete, rec: domain.GraphRecord{ID: id, Type: rdfType}}
	if err := tx.view.apply(o); err != nil {
		return err
	}
	tx.ops = append(tx.ops, o)
	return nil
}

func (tx *transaction) GetByID(_ context.Context, rdfType, id string) (domain.GraphRecord, bool, error) {
	if tx.done {
		return domain.GraphRecord{}, false, ErrTxClosed
	}
	rec, ok := tx.view[id]
	if !ok || (rdfType != "" && rec.Type != rdfType) {
		return domain.GraphRecord{}, false, nil
	}
	return rec.Clone(), true, nil
}

// Commit replays the staged operations on the current committed state. A
// conflict with a concurrent commit aborts the whole transaction.
func (tx *transaction) Commit(ctx context.Context) error {
	if tx.done {
		return ErrTxClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.clone()
	for _, o := range tx.ops {
		if err := next.apply(o); err != nil {
			return fmt.Errorf("memory graph commit: %w", err)
		}
	}
	s.state = next
	tx.done = true
	return nil
}

func (tx *transaction) Rollback(context.Context, error) error {
	tx.done = true
	tx.ops = nil
	return nil
}
