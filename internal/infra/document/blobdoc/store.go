// Package blobdoc stores documents as JSON objects in a blob store, one object
// per document at <collection>/<id>.json. Sessions stage writes and apply them
// on commit, restoring before-images if a later write fails.
package blobdoc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"

	"opensilex/internal/blob"
	"opensilex/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.DocumentStore   = (*Store)(nil)
	_ domain.DocumentSession = (*session)(nil)
)

const (
	contentType = "application/json"
	suffix      = ".json"
)

// ErrSessionClosed is returned when a committed or rolled back session is used.
var ErrSessionClosed = errors.New("blob document: session already finished")

// Store is a DocumentStore over a blob.Store.
type Store struct {
	blobs blob.Store
	// commitMu serializes commits so before-images stay valid while applying.
	commitMu sync.Mutex
}

// New wraps blobs.
func New(blobs blob.Store) *Store {
	return &Store{blobs: blobs}
}

// Driver identifies the backend, including the underlying blob driver.
func (s *Store) Driver() string { return "blob:" + string(s.blobs.Driver()) }

func key(collection, id string) string {
	return collection + "/" + url.PathEscape(id) + suffix
}

func idFromKey(collection, k string) (string, bool) {
	name, ok := strings.CutPrefix(k, collection+"/")
	if !ok || !strings.HasSuffix(name, suffix) || strings.Contains(name, "/") {
		return "", false
	}
	id, err := url.PathUnescape(strings.TrimSuffix(name, suffix))
	return id, err == nil
}

func (s *Store) read(ctx context.Context, k string) ([]byte, bool, error) {
	_, rc, err := s.blobs.Get(ctx, k)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *Store) exists(ctx context.Context, k string) (bool, error) {
	_, err := s.blobs.Head(ctx, k)
	if errors.Is(err, blob.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// FindByID reads one document.
func (s *Store) FindByID(ctx context.Context, collection, id string) (domain.DocumentRecord, bool, error) {
	b, ok, err := s.read(ctx, key(collection, id))
	if err != nil || !ok {
		return domain.DocumentRecord{}, false, err
	}
	var doc domain.DocumentRecord
	if err := json.Unmarshal(b, &doc); err != nil {
		return domain.DocumentRecord{}, false, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return doc, true, nil
}

// Find reads the candidate documents and applies filter. An id restriction
// avoids listing the collection.
func (s *Store) Find(ctx context.Context, collection string, filter domain.DocumentFilter) ([]domain.DocumentRecord, error) {
	var ids []string
	if filter.IDs != nil {
		ids = filter.IDs
	} else {
		infos, err := s.blobs.List(ctx, collection+"/")
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		for _, info := range infos {
			if id, ok := idFromKey(collection, info.Key); ok {
				ids = append(ids, id)
			}
		}
	}
	out := make([]domain.DocumentRecord, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		doc, ok, err := s.FindByID(ctx, collection, id)
		if err != nil {
			return nil, err
		}
		if ok && filter.Matches(doc) {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// StartSession opens a staging session.
func (s *Store) StartSession(ctx context.Context) (domain.DocumentSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &session{store: s, present: make(map[string]bool)}, nil
}

type opKind int

const (
	opCreate opKind = iota
	opPut
	opDelete
)

type op struct {
	kind opKind
	key  string
	id   string
	body []byte
}

type session struct {
	store   *Store
	ops     []op
	present map[string]bool
	done    bool
}

// isPresent reports whether key exists as seen through the staged writes.
func (s *session) isPresent(ctx context.Context, k string) (bool, error) {
	if p, ok := s.present[k]; ok {
		return p, nil
	}
	return s.store.exists(ctx, k)
}

func encode(doc domain.DocumentRecord) ([]byte, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document %s: %w", doc.ID, err)
	}
	return b, nil
}

func (s *session) check(ctx context.Context, id string) error {
	if s.done {
		return ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return domain.InvalidIdentifierError{Reason: "empty document id"}
	}
	return nil
}

func (s *session) InsertOne(ctx context.Context, collection string, doc domain.DocumentRecord) error {
	if err := s.check(ctx, doc.ID); err != nil {
		return err
	}
	k := key(collection, doc.ID)
	present, err := s.isPresent(ctx, k)
	if err != nil {
		return err
	}
	if present {
		return domain.DuplicateIdentifierError{ID: doc.ID}
	}
	body, err := encode(doc)
	if err != nil {
		return err
	}
	s.ops = append(s.ops, op{kind: opCreate, key: k, id: doc.ID, body: body})
	s.present[k] = true
	return nil
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
	if err := s.check(ctx, doc.ID); err != nil {
		return err
	}
	k := key(collection, doc.ID)
	if !upsert {
		present, err := s.isPresent(ctx, k)
		if err != nil {
			return err
		}
		if !present {
			return domain.NotFoundError{Type: collection, ID: doc.ID}
		}
	}
	body, err := encode(doc)
	if err != nil {
		return err
	}
	s.ops = append(s.ops, op{kind: opPut, key: k, id: doc.ID, body: body})
	s.present[k] = true
	return nil
}

func (s *session) DeleteOne(ctx context.Context, collection, id string) (bool, error) {
	if err := s.check(ctx, id); err != nil {
		return false, err
	}
	k := key(collection, id)
	present, err := s.isPresent(ctx, k)
	if err != nil || !present {
		return false, err
	}
	s.ops = append(s.ops, op{kind: opDelete, key: k, id: id})
	s.present[k] = false
	return true, nil
}

type beforeImage struct {
	key    string
	body   []byte
	exists bool
}

// Commit applies staged writes in order. If one fails, the writes already
// applied are reverted from their before-images.
func (s *session) Commit(ctx context.Context) error {
	if s.done {
		return ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	st := s.store
	st.commitMu.Lock()
	defer st.commitMu.Unlock()
	var applied []beforeImage
	for _, o := range s.ops {
		prev, existed, err := st.read(ctx, o.key)
		if err == nil {
			err = s.apply(ctx, o, existed)
		}
		if err != nil {
			st.restore(context.WithoutCancel(ctx), applied)
			return fmt.Errorf("blob document commit: %w", err)
		}
		applied = append(applied, beforeImage{key: o.key, body: prev, exists: existed})
	}
	s.done = true
	return nil
}

func (s *session) apply(ctx context.Context, o op, existed bool) error {
	blobs := s.store.blobs
	switch o.kind {
	case opCreate:
		if existed {
			return domain.DuplicateIdentifierError{ID: o.id}
		}
		_, err := blobs.Put(ctx, o.key, bytes.NewReader(o.body), blob.PutOptions{ContentType: contentType})
		if errors.Is(err, blob.ErrExists) {
			return domain.DuplicateIdentifierError{ID: o.id}
		}
		return err
	case opPut:
		_, err := blobs.Put(ctx, o.key, bytes.NewReader(o.body), blob.PutOptions{ContentType: contentType, Overwrite: true})
		return err
	case opDelete:
		_, err := blobs.Delete(ctx, o.key)
		return err
	}
	return nil
}

// restore reverts applied writes, newest first. Failures are ignored; the
// reconciler sweeps anything left behind.
func (s *Store) restore(ctx context.Context, applied []beforeImage) {
	for i := len(applied) - 1; i >= 0; i-- {
		img := applied[i]
		if img.exists {
			_, _ = s.blobs.Put(ctx, img.key, bytes.NewReader(img.body), blob.PutOptions{ContentType: contentType, Overwrite: true})
			continue
		}
		_, _ = s.blobs.Delete(ctx, img.key)
	}
}

func (s *session) Rollback(context.Context) error {
	s.done = true
	s.ops = nil
	return nil
}
