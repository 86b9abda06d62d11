// Package memory provides an in-memory document store used for tests and
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
	_ domain.DocumentStore   = (*Store)(nil)
	_ domain.DocumentSession = (*session)(nil)
)

// ErrSessionClosed is returned when a committed or rolled back session is used.
var ErrSessionClosed = errors.New("memory document: session already finished")

type opKind int

const (
	opInsert opKind = iota
	opReplace
	opUpsert
	opDelete
)

type op struct {
	kind       opKind
	collection string
	doc        domain.DocumentRecord
}

type collections map[string]map[string]domain.DocumentRecord

func (c collections) clone() collections {
	out := make(collections, len(c))
	for name, docs := range c {
		cp := make(map[string]domain.DocumentRecord, len(docs))
		for id, doc := range docs {
			cp[id] = doc.Clone()
		}
		out[name] = cp
	}
	return out
}

func (c collections) apply(o op) error {
	docs := c[o.collection]
	if docs == nil {
		docs = make(map[string]domain.DocumentRecord)
		c[o.collection] = docs
	}
	_, exists := docs[o.doc.ID]
	switch o.kind {
	case opInsert:
		if exists {
			return domain.DuplicateIdentifierError{ID: o.doc.ID}
		}
		docs[o.doc.ID] = o.doc.Clone()
	case opReplace:
		if !exists {
			return domain.NotFoundError{Type: o.collection, ID: o.doc.ID}
		}
		docs[o.doc.ID] = o.doc.Clone()
	case opUpsert:
		docs[o.doc.ID] = o.doc.Clone()
	case opDelete:
		delete(docs, o.doc.ID)
	}
	return nil
}

// Store keeps documents per collection keyed by short id.
type Store struct {
	mu    sync.RWMutex
	state collections
}

// NewStore constructs an empty in-memory document store.
func NewStore() *Store {
	return &Store{state: make(collections)}
}

// Driver identifies the backend.
func (s *Store) Driver() string { return "memory" }

// StartSession opens a session staging writes until Commit.
func (s *Store) StartSession(ctx context.Context) (domain.DocumentSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	view := s.state.clone()
	s.mu.RUnlock()
	return &session{store: s, view: view}, nil
}

// FindByID returns the committed document with id.
func (s *Store) FindByID(_ context.Context, collection, id string) (domain.DocumentRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.state[collection][id]
	if !ok {
		return domain.DocumentRecord{}, false, nil
	}
	return doc.Clone(), true, nil
}

// Find returns committed documents of collection matching filter.
func (s *Store) Find(_ context.Context, collection string, filter domain.DocumentFilter) ([]domain.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DocumentRecord, 0)
	for _, doc := range s.state[collection] {
		if filter.Matches(doc) {
			out = append(out, doc.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Count returns the number of committed documents in collection.
func (s *Store) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state[collection])
}

type session struct {
	store *Store
	view  collections
	ops   []op
	done  bool
}

func (s *session) stage(ctx context.Context, o op) error {
	if s.done {
		return ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.doc.ID == "" {
		return domain.InvalidIdentifierError{Reason: "empty document id"}
	}
	if err := s.view.apply(o); err != nil {
		return err
	}
	s.ops = append(s.ops, o)
	return nil
}

func (s *session) InsertOne(ctx context.Context, collection string, doc domain.DocumentRecord) error {
	return s.stage(ctx, op{kind: opInsert, collection: collection, doc: doc.Clone()})
}

func (s *session) InsertMany(ctx context.Context, collection string, docs []domain.DocumentRecord) error {
	for _, doc := range docs {
		if err := s.InsertOne(ctx, collection, doc); err != nil {
			return fmt.Errorf("insert %s: %w", doc.ID, err)
		}
	}
	return nil
}

func (s *session) ReplaceOne(ctx context.Context, collection string, doc domain.DocumentRecord, upsert bool) error {
	kind := opReplace
	if upsert {
		kind = opUpsert
	}
	return s.stage(ctx, op{kind: kind, collection: collection, doc: doc.Clone()})
}

func (s *session) DeleteOne(ctx context.Context, collection, id string) (bool, error) {
	if s.done {
		return false, ErrSessionClosed
	}
	_, existed := s.view[collection][id]
	if err := s.stage(ctx, op{kind: opDelete, collection: collection, doc: domain.DocumentRecord{ID: id}}); err != nil {
		return false, err
	}
	return existed, nil
}

func (s *session) Commit(ctx context.Context) error {
	if s.done {
		return ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()
	next := st.state.clone()
	for _, o := range s.ops {
		if err := next.apply(o); err != nil {
			return fmt.Errorf("memory document commit: %w", err)
		}
	}
	st.state = next
	s.done = true
	return nil
}

func (s *session) Rollback(context.Context) error {
	s.done = true
	s.ops = nil
	return nil
}
