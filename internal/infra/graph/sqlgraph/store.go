// Package sqlgraph implements the graph store on top of database/sql. Each
// resource is a row in graph_resources and each of its field values a quad in
// graph_quads, with predicates resolved through the ontology vocabulary. The
// sqlite and postgres packages supply the driver and dialect.
package sqlgraph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"opensilex/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.GraphStore = (*Store)(nil)
	_ domain.GraphTx    = (*transaction)(nil)
)

const (
	// lookupChunk bounds the number of bind parameters in IN lists.
	lookupChunk = 500
	// maxBindParams keeps multi-row statements under SQLite's default limit of
	// 32766 host parameters (Postgres allows 65535).
	maxBindParams = 32000

	resourceColumns = 3
	quadColumns     = 5
)

// Dialect captures the SQL differences between backends.
type Dialect struct {
	Name string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// IsUniqueViolation reports whether err is a primary key/unique conflict.
	IsUniqueViolation func(err error) bool
}

// QuestionPlaceholder renders "?" placeholders.
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder renders "$n" placeholders.
func DollarPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Store is a SQL-backed graph store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	vocab   Vocabulary
}

// New wraps an open, migrated database.
func New(db *sql.DB, dialect Dialect, vocab Vocabulary) *Store {
	if vocab == nil {
		vocab = SchemaVocabulary(nil)
	}
	return &Store{db: db, dialect: dialect, vocab: vocab}
}

// DB exposes the underlying sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

// Driver identifies the backend.
func (s *Store) Driver() string { return s.dialect.Name }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Begin opens a database transaction.
func (s *Store) Begin(ctx context.Context) (domain.GraphTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s begin: %w", s.dialect.Name, err)
	}
	return &transaction{store: s, tx: tx}, nil
}

// GetByID returns the committed record with id and rdf:type.
func (s *Store) GetByID(ctx context.Context, rdfType, id string) (domain.GraphRecord, bool, error) {
	return s.getByID(ctx, s.db, rdfType, id)
}

// GetByIDs returns the existing records among ids, in input order.
func (s *Store) GetByIDs(ctx context.Context, rdfType string, ids []string) ([]domain.GraphRecord, error) {
	found, err := s.loadResources(ctx, s.db, rdfType, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.GraphRecord, 0, len(found))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if rec, ok := found[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Search narrows candidates in SQL by type, graph, ids and equality
// conditions, then applies the full query semantics in memory.
func (s *Store) Search(ctx context.Context, q domain.GraphQuery) (domain.Page[domain.GraphRecord], error) {
	if q.IDs != nil && len(q.IDs) == 0 {
		return domain.Page[domain.GraphRecord]{Items: []domain.GraphRecord{}, Offset: q.Offset, Limit: q.Limit}, nil
	}
	idChunks := [][]string{nil}
	if q.IDs != nil {
		idChunks = chunks(dedupe(q.IDs), lookupChunk)
	}
	var ids []string
	for _, idChunk := range idChunks {
		matched, err := s.matchURIs(ctx, q, idChunk)
		if err != nil {
			return domain.Page[domain.GraphRecord]{}, err
		}
		ids = append(ids, matched...)
	}
	found, err := s.loadResources(ctx, s.db, q.Type, ids)
	if err != nil {
		return domain.Page[domain.GraphRecord]{}, err
	}
	records := make([]domain.GraphRecord, 0, len(found))
	for _, rec := range found {
		records = append(records, rec)
	}
	return domain.ApplyQuery(records, q), nil
}

// matchURIs runs the SQL prefilter of q, restricted to ids when non-nil.
func (s *Store) matchURIs(ctx context.Context, q domain.GraphQuery, ids []string) ([]string, error) {
	b := &builder{dialect: s.dialect}
	var where []string
	if q.Type != "" {
		where = append(where, "r.rdf_type = "+b.arg(q.Type))
	}
	if q.Graph != "" {
		where = append(where, "r.graph = "+b.arg(q.Graph))
	}
	if ids != nil {
		where = append(where, "r.uri IN ("+b.args(ids)+")")
	}
	for _, c := range q.Conditions {
		if (c.Op != domain.OpEq && c.Op != domain.OpIn) || len(c.Values) == 0 || q.Type == "" {
			continue
		}
		pred := s.vocab.Predicate(q.Type, c.Field)
		where = append(where, "EXISTS (SELECT 1 FROM graph_quads q WHERE q.subject = r.uri AND q.predicate = "+
			b.arg(pred)+" AND q.object IN ("+b.args(c.Values)+"))")
	}
	query := "SELECT r.uri FROM graph_resources r"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	rows, err := s.db.QueryContext(ctx, query, b.values...)
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", s.dialect.Name, err)
	}
	var matched []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("%s search scan: %w", s.dialect.Name, err)
		}
		matched = append(matched, id)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return matched, nil
}

// ExistsAny reports whether any of ids exists in graph (all graphs when empty).
func (s *Store) ExistsAny(ctx context.Context, graph string, ids []string) (bool, error) {
	n, err := s.countExisting(ctx, graph, ids)
	return n > 0, err
}

// ExistsAll reports whether every id exists in graph (all graphs when empty).
func (s *Store) ExistsAll(ctx context.Context, graph string, ids []string) (bool, error) {
	unique := dedupe(ids)
	n, err := s.countExisting(ctx, graph, unique)
	return n == len(unique), err
}

func (s *Store) countExisting(ctx context.Context, graph string, ids []string) (int, error) {
	total := 0
	for _, chunk := range chunks(dedupe(ids), lookupChunk) {
		b := &builder{dialect: s.dialect}
		query := "SELECT COUNT(*) FROM graph_resources WHERE uri IN (" + b.args(chunk) + ")"
		if graph != "" {
			query += " AND graph = " + b.arg(graph)
		}
		var n int
		if err := s.db.QueryRowContext(ctx, query, b.values...).Scan(&n); err != nil {
			return 0, fmt.Errorf("%s exists: %w", s.dialect.Name, err)
		}
		total += n
	}
	return total, nil
}

func (s *Store) getByID(ctx context.Context, q querier, rdfType, id string) (domain.GraphRecord, bool, error) {
	found, err := s.loadResources(ctx, q, rdfType, []string{id})
	if err != nil {
		return domain.GraphRecord{}, false, err
	}
	rec, ok := found[id]
	return rec, ok, nil
}

// loadResources fetches resources and their quads for ids, keyed by uri.
func (s *Store) loadResources(ctx context.Context, q querier, rdfType string, ids []string) (map[string]domain.GraphRecord, error) {
	out := make(map[string]domain.GraphRecord, len(ids))
	for _, chunk := range chunks(dedupe(ids), lookupChunk) {
		b := &builder{dialect: s.dialect}
		query := "SELECT uri, rdf_type, graph FROM graph_resources WHERE uri IN (" + b.args(chunk) + ")"
		if rdfType != "" {
			query += " AND rdf_type = " + b.arg(rdfType)
		}
		rows, err := q.QueryContext(ctx, query, b.values...)
		if err != nil {
			return nil, fmt.Errorf("%s load resources: %w", s.dialect.Name, err)
		}
		var present []string
		for rows.Next() {
			rec := domain.GraphRecord{Fields: domain.Fields{}}
			if err := rows.Scan(&rec.ID, &rec.Type, &rec.Graph); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("%s scan resource: %w", s.dialect.Name, err)
			}
			out[rec.ID] = rec
			present = append(present, rec.ID)
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}
		if len(present) == 0 {
			continue
		}
		qb := &builder{dialect: s.dialect}
		quads, err := q.QueryContext(ctx,
			"SELECT subject, predicate, object FROM graph_quads WHERE subject IN ("+qb.args(present)+") ORDER BY subject, position",
			qb.values...)
		if err != nil {
			return nil, fmt.Errorf("%s load quads: %w", s.dialect.Name, err)
		}
		for quads.Next() {
			var subject, predicate, object string
			if err := quads.Scan(&subject, &predicate, &object); err != nil {
				_ = quads.Close()
				return nil, fmt.Errorf("%s scan quad: %w", s.dialect.Name, err)
			}
			rec := out[subject]
			field := s.vocab.Field(rec.Type, predicate)
			rec.Fields[field] = append(rec.Fields[field], object)
		}
		if err := closeRows(quads); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	return err
}

// builder accumulates bind values and renders dialect placeholders.
type builder struct {
	dialect Dialect
	values  []any
}

func (b *builder) arg(v any) string {
	b.values = append(b.values, v)
	return b.dialect.Placeholder(len(b.values))
}

func (b *builder) args(vs []string) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = b.arg(v)
	}
	return strings.Join(parts, ", ")
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func chunks[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}

type transaction struct {
	store *Store
	tx    *sql.Tx
	done  bool
}

func (t *transaction) name() string { return t.store.dialect.Name }

func (t *transaction) CreateRecord(ctx context.Context, graph string, rec domain.GraphRecord) error {
	return t.CreateRecords(ctx, graph, []domain.GraphRecord{rec}, 1)
}

// CreateRecords inserts recs with one multi-row statement per chunk of
// batchSize records for resources, and quad statements bounded by the bind
// parameter budget.
func (t *transaction) CreateRecords(ctx context.Context, graph string, recs []domain.GraphRecord, batchSize int) error {
	staged := make([]domain.GraphRecord, len(recs))
	for i, rec := range recs {
		if rec.ID == "" {
			return domain.InvalidIdentifierError{Reason: "empty"}
		}
		staged[i] = rec
	}
	if batchSize <= 0 || batchSize > maxBindParams/resourceColumns {
		batchSize = maxBindParams / resourceColumns
	}
	for _, chunk := range chunks(staged, batchSize) {
		b := &builder{dialect: t.store.dialect}
		rows := make([]string, 0, len(chunk))
		for i := range chunk {
			if graph != "" {
				chunk[i].Graph = graph
			}
			rows = append(rows, "("+b.arg(chunk[i].ID)+", "+b.arg(chunk[i].Type)+", "+b.arg(chunk[i].Graph)+")")
		}
		_, err := t.tx.ExecContext(ctx, "INSERT INTO graph_resources (uri, rdf_type, graph) VALUES "+strings.Join(rows, ", "), b.values...)
		if err != nil {
			if t.store.dialect.IsUniqueViolation != nil && t.store.dialect.IsUniqueViolation(err) {
				return domain.DuplicateIdentifierError{ID: duplicateHint(chunk)}
			}
			return fmt.Errorf("%s insert resources: %w", t.name(), err)
		}
		if err := t.insertQuads(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

// duplicateHint names the conflicting id when the chunk holds a single record.
func duplicateHint(chunk []domain.GraphRecord) string {
	if len(chunk) == 1 {
		return chunk[0].ID
	}
	ids := make([]string, len(chunk))
	for i, rec := range chunk {
		ids[i] = rec.ID
	}
	return strings.Join(ids, ",")
}

type quad struct {
	subject, predicate, object, graph string
	position                          int
}

func (t *transaction) insertQuads(ctx context.Context, recs []domain.GraphRecord) error {
	var quads []quad
	for _, rec := range recs {
		for _, field := range rec.Fields.Names() {
			pred := t.store.vocab.Predicate(rec.Type, field)
			for pos, value := range rec.Fields[field] {
				quads = append(quads, quad{subject: rec.ID, predicate: pred, object: value, graph: rec.Graph, position: pos})
			}
		}
	}
	for _, chunk := range chunks(quads, maxBindParams/quadColumns) {
		b := &builder{dialect: t.store.dialect}
		rows := make([]string, 0, len(chunk))
		for _, q := range chunk {
			rows = append(rows, "("+b.arg(q.subject)+", "+b.arg(q.predicate)+", "+b.arg(q.object)+", "+b.arg(q.position)+", "+b.arg(q.graph)+")")
		}
		if _, err := t.tx.ExecContext(ctx, "INSERT INTO graph_quads (subject, predicate, object, position, graph) VALUES "+strings.Join(rows, ", "), b.values...); err != nil {
			return fmt.Errorf("%s insert quads: %w", t.name(), err)
		}
	}
	return nil
}

func (t *transaction) UpdateRecord(ctx context.Context, rec domain.GraphRecord) error {
	existing, ok, err := t.store.getByID(ctx, t.tx, rec.Type, rec.ID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFoundError{Type: rec.Type, ID: rec.ID}
	}
	if rec.Graph == "" {
		rec.Graph = existing.Graph
	}
	b := &builder{dialect: t.store.dialect}
	if _, err := t.tx.ExecContext(ctx, "UPDATE graph_resources SET graph = "+b.arg(rec.Graph)+" WHERE uri = "+b.arg(rec.ID), b.values...); err != nil {
		return fmt.Errorf("%s update resource: %w", t.name(), err)
	}
	if err := t.deleteQuads(ctx, rec.ID); err != nil {
		return err
	}
	return t.insertQuads(ctx, []domain.GraphRecord{rec})
}

func (t *transaction) deleteQuads(ctx context.Context, id string) error {
	b := &builder{dialect: t.store.dialect}
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM graph_quads WHERE subject = "+b.arg(id), b.values...); err != nil {
		return fmt.Errorf("%s delete quads: %w", t.name(), err)
	}
	return nil
}

func (t *transaction) DeleteRecord(ctx context.Context, rdfType, id string) error {
	b := &builder{dialect: t.store.dialect}
	res, err := t.tx.ExecContext(ctx, "DELETE FROM graph_resources WHERE uri = "+b.arg(id)+" AND rdf_type = "+b.arg(rdfType), b.values...)
	if err != nil {
		return fmt.Errorf("%s delete resource: %w", t.name(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s delete resource: %w", t.name(), err)
	}
	if n == 0 {
		return domain.NotFoundError{Type: rdfType, ID: id}
	}
	return t.deleteQuads(ctx, id)
}

func (t *transaction) GetByID(ctx context.Context, rdfType, id string) (domain.GraphRecord, bool, error) {
	return t.store.getByID(ctx, t.tx, rdfType, id)
}

func (t *transaction) Commit(context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("%s commit: %w", t.name(), err)
	}
	t.done = true
	return nil
}

func (t *transaction) Rollback(context.Context, error) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%s rollback: %w", t.name(), err)
	}
	return nil
}
