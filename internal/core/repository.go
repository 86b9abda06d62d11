package core

import (
	"context"
	"fmt"
	"iter"

	"opensilex/pkg/domain"
	"opensilex/pkg/ontology"
)

// DefaultMaxPerQuery caps batch writes and bulk lookups.
const DefaultMaxPerQuery = 1000

// Mapper converts between an aggregate and its split graph/document form.
type Mapper[E any, F any] interface {
	// Kind is the id prefix used when generating identifiers.
	Kind() string
	// Type is the rdf:type of the aggregate.
	Type() string
	// Collection names the document collection holding payloads.
	Collection() string
	Split(e E) (domain.LogicalEntity, error)
	Join(entity domain.LogicalEntity) (E, error)
	// Query translates a filter into a graph query plus an optional filter on
	// document-only fields.
	Query(f F) (domain.GraphQuery, *domain.DocumentFilter, error)
}

// RepositoryConfig wires a Repository. Zero values select defaults.
type RepositoryConfig struct {
	Identity    *Identity
	Coordinator *Coordinator
	Schema      *ontology.Schema
	MaxPerQuery int
	// Graph is the named graph for new records. It defaults to the ontology
	// class graph, then to a graph derived from the collection.
	Graph string

	run func(ctx context.Context, op string, fn func(context.Context) error) error
}

// Repository is the EntityRepository facade for one aggregate type.
type Repository[E any, F any] struct {
	mapper      Mapper[E, F]
	graph       domain.GraphStore
	docs        domain.DocumentStore
	identity    *Identity
	coordinator *Coordinator
	assembler   Assembler
	class       *ontology.Class
	maxPerQuery int
	graphName   string
	runner      func(ctx context.Context, op string, fn func(context.Context) error) error
}

// NewRepository builds a repository over the two stores.
func NewRepository[E any, F any](graph domain.GraphStore, docs domain.DocumentStore, mapper Mapper[E, F], cfg RepositoryConfig) *Repository[E, F] {
	r := &Repository[E, F]{
		mapper:      mapper,
		graph:       graph,
		docs:        docs,
		identity:    cfg.Identity,
		coordinator: cfg.Coordinator,
		maxPerQuery: cfg.MaxPerQuery,
		graphName:   cfg.Graph,
		runner:      cfg.run,
	}
	if r.identity == nil {
		r.identity = NewIdentity(DefaultNamespace, UUIDSource{}, graph)
	}
	if r.coordinator == nil {
		r.coordinator = NewCoordinator(graph, docs, noopLogger{})
	}
	if r.maxPerQuery <= 0 {
		r.maxPerQuery = DefaultMaxPerQuery
	}
	if cfg.Schema != nil {
		if class, ok := cfg.Schema.Class(mapper.Type()); ok {
			r.class = &class
			if r.graphName == "" {
				r.graphName = class.Graph
			}
		}
	}
	if r.graphName == "" {
		r.graphName = "urn:opensilex:graph:" + mapper.Collection()
	}
	r.assembler = NewAssembler(r.identity)
	return r
}

// Graph returns the named graph receiving new records.
func (r *Repository[E, F]) Graph() string { return r.graphName }

func (r *Repository[E, F]) run(ctx context.Context, action domain.Action, fn func(context.Context) error) error {
	if r.runner == nil {
		return fn(ctx)
	}
	return r.runner(ctx, r.opName(action), fn)
}

func (r *Repository[E, F]) opName(action domain.Action) string {
	return string(action) + "_" + r.mapper.Kind()
}

// split maps e, checks its rdf:type, normalizes the payload and validates
// the fields against the schema class.
func (r *Repository[E, F]) split(e E) (domain.LogicalEntity, error) {
	entity, err := r.mapper.Split(e)
	if err != nil {
		return domain.LogicalEntity{}, err
	}
	switch entity.Type {
	case "":
		entity.Type = r.mapper.Type()
	case r.mapper.Type():
	default:
		return domain.LogicalEntity{}, domain.ValidationError{
			Type:     r.mapper.Kind(),
			Problems: []string{fmt.Sprintf("rdf:type %q does not match %q", entity.Type, r.mapper.Type())},
		}
	}
	if entity.Fields == nil {
		entity.Fields = domain.Fields{}
	}
	if entity.Payload, err = entity.Payload.Normalize(); err != nil {
		return domain.LogicalEntity{}, err
	}
	if r.class != nil {
		if err := r.class.Validate(entity.Fields); err != nil {
			return domain.LogicalEntity{}, err
		}
	}
	return entity, nil
}

func (r *Repository[E, F]) document(entity domain.LogicalEntity) domain.DocumentRecord {
	return domain.DocumentRecord{ID: r.identity.Short(entity.ID), URI: entity.ID, Payload: entity.Payload.Clone()}
}

// Create resolves the identifier, rejects duplicates and writes the graph
// record together with the document record when a payload is present.
func (r *Repository[E, F]) Create(ctx context.Context, e E) (E, error) {
	var out E
	err := r.run(ctx, domain.ActionCreate, func(ctx context.Context) error {
		entity, err := r.split(e)
		if err != nil {
			return err
		}
		supplied := entity.ID != ""
		if entity.ID, err = r.identity.Resolve(entity.ID, r.mapper.Kind()); err != nil {
			return err
		}
		if supplied {
			exists, err := r.identity.ExistsAnywhere(ctx, entity.ID)
			if err != nil {
				return err
			}
			if exists {
				return domain.DuplicateIdentifierError{ID: entity.ID}
			}
		}
		if entity.Graph == "" {
			entity.Graph = r.graphName
		}
		rec := entity.GraphRecord()
		var docOp DocumentOp
		if entity.HasPayload() {
			doc := r.document(entity)
			docOp = func(ctx context.Context, sess domain.DocumentSession) error {
				return sess.InsertOne(ctx, r.mapper.Collection(), doc)
			}
		}
		graphOp := func(ctx context.Context, tx domain.GraphTx) error {
			return tx.CreateRecord(ctx, rec.Graph, rec)
		}
		if err := r.coordinator.Run(ctx, r.opName(domain.ActionCreate), graphOp, docOp); err != nil {
			return err
		}
		out, err = r.mapper.Join(entity)
		return err
	})
	return out, err
}

// CreateMany writes all entities under one coordinated transaction pair.
// Identifiers are resolved and validated for the whole batch first.
func (r *Repository[E, F]) CreateMany(ctx context.Context, es []E) ([]E, error) {
	var out []E
	err := r.run(ctx, domain.ActionCreateMany, func(ctx context.Context) error {
		if len(es) == 0 {
			return nil
		}
		entities := make([]domain.LogicalEntity, 0, len(es))
		seen := make(map[string]struct{}, len(es))
		var supplied []string
		for _, e := range es {
			entity, err := r.split(e)
			if err != nil {
				return err
			}
			candidate := entity.ID
			if entity.ID, err = r.identity.Resolve(entity.ID, r.mapper.Kind()); err != nil {
				return err
			}
			if _, dup := seen[entity.ID]; dup {
				return domain.DuplicateIdentifierError{ID: entity.ID}
			}
			seen[entity.ID] = struct{}{}
			if candidate != "" {
				supplied = append(supplied, entity.ID)
			}
			if entity.Graph == "" {
				entity.Graph = r.graphName
			}
			entities = append(entities, entity)
		}
		if err := r.rejectExisting(ctx, supplied); err != nil {
			return err
		}

		byGraph := make(map[string][]domain.GraphRecord)
		var graphs []string
		var docs []domain.DocumentRecord
		for _, entity := range entities {
			if _, ok := byGraph[entity.Graph]; !ok {
				graphs = append(graphs, entity.Graph)
			}
			byGraph[entity.Graph] = append(byGraph[entity.Graph], entity.GraphRecord())
			if entity.HasPayload() {
				docs = append(docs, r.document(entity))
			}
		}
		graphOp := func(ctx context.Context, tx domain.GraphTx) error {
			for _, g := range graphs {
				if err := tx.CreateRecords(ctx, g, byGraph[g], r.maxPerQuery); err != nil {
					return err
				}
			}
			return nil
		}
		var docOp DocumentOp
		if len(docs) > 0 {
			docOp = func(ctx context.Context, sess domain.DocumentSession) error {
				for _, part := range chunk(docs, r.maxPerQuery) {
					if err := sess.InsertMany(ctx, r.mapper.Collection(), part); err != nil {
						return err
					}
				}
				return nil
			}
		}
		if err := r.coordinator.Run(ctx, r.opName(domain.ActionCreateMany), graphOp, docOp); err != nil {
			return err
		}
		out = make([]E, 0, len(entities))
		for _, entity := range entities {
			e, err := r.mapper.Join(entity)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

func (r *Repository[E, F]) rejectExisting(ctx context.Context, ids []string) error {
	for _, batch := range chunk(ids, r.maxPerQuery) {
		found, err := r.graph.ExistsAny(ctx, "", batch)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		for _, id := range batch {
			exists, err := r.identity.ExistsAnywhere(ctx, id)
			if err != nil {
				return err
			}
			if exists {
				return domain.DuplicateIdentifierError{ID: id}
			}
		}
	}
	return nil
}

// Get returns the merged entity or a NotFoundError. A missing document is not
// an error.
func (r *Repository[E, F]) Get(ctx context.Context, id string) (E, error) {
	var out E
	err := r.run(ctx, "get", func(ctx context.Context) error {
		rec, ok, err := r.graph.GetByID(ctx, r.mapper.Type(), id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NotFoundError{Type: r.mapper.Kind(), ID: id}
		}
		doc, state, err := r.findDocument(ctx, rec.ID)
		if err != nil {
			return err
		}
		var docPtr *domain.DocumentRecord
		if state == docOwned {
			docPtr = &doc
		}
		out, err = r.mapper.Join(r.assembler.Merge(rec, docPtr))
		return err
	})
	return out, err
}

// GetMany returns the existing entities among ids, in input order, using one
// graph lookup and one document lookup per batch.
func (r *Repository[E, F]) GetMany(ctx context.Context, ids []string) ([]E, error) {
	var out []E
	err := r.run(ctx, "get_many", func(ctx context.Context) error {
		out = make([]E, 0, len(ids))
		for _, batch := range chunk(ids, r.maxPerQuery) {
			recs, err := r.graph.GetByIDs(ctx, r.mapper.Type(), batch)
			if err != nil {
				return err
			}
			entities, err := r.merge(ctx, recs)
			if err != nil {
				return err
			}
			for _, entity := range entities {
				e, err := r.mapper.Join(entity)
				if err != nil {
					return err
				}
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

func (r *Repository[E, F]) merge(ctx context.Context, recs []domain.GraphRecord) ([]domain.LogicalEntity, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	shorts := make([]string, 0, len(recs))
	for _, rec := range recs {
		shorts = append(shorts, r.identity.Short(rec.ID))
	}
	docs, err := r.docs.Find(ctx, r.mapper.Collection(), domain.ByIDs(shorts...))
	if err != nil {
		return nil, err
	}
	return r.assembler.MergeMany(recs, IndexDocuments(docs)), nil
}

type docState int

const (
	docAbsent docState = iota
	docOwned
	// docForeign marks a document stored under the same short key by another
	// graph URI.
	docForeign
)

// findDocument looks up the document keyed by the short form of id and
// classifies it by its uri back-reference.
func (r *Repository[E, F]) findDocument(ctx context.Context, id string) (domain.DocumentRecord, docState, error) {
	doc, found, err := r.docs.FindByID(ctx, r.mapper.Collection(), r.identity.Short(id))
	switch {
	case err != nil:
		return domain.DocumentRecord{}, docAbsent, err
	case !found:
		return domain.DocumentRecord{}, docAbsent, nil
	case doc.URI != id:
		return doc, docForeign, nil
	}
	return doc, docOwned, nil
}

// Update replaces an existing entity. The document side is upserted when a
// payload is present, deleted when the payload became absent, and untouched
// when there was none before or after.
func (r *Repository[E, F]) Update(ctx context.Context, e E) (E, error) {
	var out E
	err := r.run(ctx, domain.ActionUpdate, func(ctx context.Context) error {
		entity, err := r.split(e)
		if err != nil {
			return err
		}
		if entity.ID == "" {
			return domain.InvalidIdentifierError{Reason: "update requires an identifier"}
		}
		if err := ValidateURI(entity.ID); err != nil {
			return err
		}
		existing, ok, err := r.graph.GetByID(ctx, r.mapper.Type(), entity.ID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NotFoundError{Type: r.mapper.Kind(), ID: entity.ID}
		}
		if entity.Graph == "" {
			entity.Graph = existing.Graph
		}
		short := r.identity.Short(entity.ID)
		// Branching hint only; the writes below stay correct if it is stale.
		current, state, err := r.findDocument(ctx, entity.ID)
		if err != nil {
			return err
		}
		var docOp DocumentOp
		switch {
		case entity.HasPayload() && state == docForeign:
			conflict := domain.DocumentConflictError{Key: short, Owner: current.URI, ID: entity.ID}
			docOp = func(context.Context, domain.DocumentSession) error { return conflict }
		case entity.HasPayload():
			doc := r.document(entity)
			docOp = func(ctx context.Context, sess domain.DocumentSession) error {
				return sess.ReplaceOne(ctx, r.mapper.Collection(), doc, true)
			}
		case state == docOwned:
			docOp = func(ctx context.Context, sess domain.DocumentSession) error {
				_, err := sess.DeleteOne(ctx, r.mapper.Collection(), short)
				return err
			}
		}
		rec := entity.GraphRecord()
		graphOp := func(ctx context.Context, tx domain.GraphTx) error {
			return tx.UpdateRecord(ctx, rec)
		}
		if err := r.coordinator.Run(ctx, r.opName(domain.ActionUpdate), graphOp, docOp); err != nil {
			return err
		}
		out, err = r.mapper.Join(entity)
		return err
	})
	return out, err
}

// Delete removes the graph record and, when one exists, the document record.
// No document session is opened for entities without a document.
func (r *Repository[E, F]) Delete(ctx context.Context, id string) error {
	return r.run(ctx, domain.ActionDelete, func(ctx context.Context) error {
		_, ok, err := r.graph.GetByID(ctx, r.mapper.Type(), id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NotFoundError{Type: r.mapper.Kind(), ID: id}
		}
		short := r.identity.Short(id)
		_, state, err := r.findDocument(ctx, id)
		if err != nil {
			return err
		}
		var docOp DocumentOp
		if state == docOwned {
			docOp = func(ctx context.Context, sess domain.DocumentSession) error {
				_, err := sess.DeleteOne(ctx, r.mapper.Collection(), short)
				return err
			}
		}
		graphOp := func(ctx context.Context, tx domain.GraphTx) error {
			return tx.DeleteRecord(ctx, r.mapper.Type(), id)
		}
		return r.coordinator.Run(ctx, r.opName(domain.ActionDelete), graphOp, docOp)
	})
}

// Exists reports whether a graph record exists for id.
func (r *Repository[E, F]) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.run(ctx, "exists", func(ctx context.Context) error {
		var err error
		exists, err = r.identity.ExistsAnywhere(ctx, id)
		return err
	})
	return exists, err
}

// Search filters in the graph store. Filters on document-only fields are
// resolved in the document store first and intersected as an id restriction.
func (r *Repository[E, F]) Search(ctx context.Context, f F) (domain.Page[E], error) {
	var out domain.Page[E]
	err := r.run(ctx, "search", func(ctx context.Context) error {
		q, err := r.query(ctx, f)
		if err != nil {
			return err
		}
		out, err = r.searchPage(ctx, q)
		return err
	})
	return out, err
}

// SearchStream yields every match of f, paging through the graph store in
// batches of the configured maximum per query. Pagination in f is ignored.
func (r *Repository[E, F]) SearchStream(ctx context.Context, f F) iter.Seq2[E, error] {
	return func(yield func(E, error) bool) {
		var zero E
		q, err := r.query(ctx, f)
		if err != nil {
			yield(zero, err)
			return
		}
		q.Offset, q.Limit = 0, r.maxPerQuery
		for {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}
			page, err := r.searchPage(ctx, q)
			if err != nil {
				yield(zero, err)
				return
			}
			for _, e := range page.Items {
				if !yield(e, nil) {
					return
				}
			}
			if !page.HasMore() || len(page.Items) == 0 {
				return
			}
			q.Offset += len(page.Items)
		}
	}
}

func (r *Repository[E, F]) query(ctx context.Context, f F) (domain.GraphQuery, error) {
	q, docFilter, err := r.mapper.Query(f)
	if err != nil {
		return domain.GraphQuery{}, err
	}
	q.Type = r.mapper.Type()
	if docFilter == nil || !docFilter.DocumentOnly() {
		return q, nil
	}
	docs, err := r.docs.Find(ctx, r.mapper.Collection(), *docFilter)
	if err != nil {
		return domain.GraphQuery{}, fmt.Errorf("document filter: %w", err)
	}
	uris := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc.URI != "" {
			uris = append(uris, doc.URI)
		}
	}
	q.IDs = intersect(q.IDs, uris)
	return q, nil
}

func (r *Repository[E, F]) searchPage(ctx context.Context, q domain.GraphQuery) (domain.Page[E], error) {
	page, err := r.graph.Search(ctx, q)
	if err != nil {
		return domain.Page[E]{}, err
	}
	entities, err := r.merge(ctx, page.Items)
	if err != nil {
		return domain.Page[E]{}, err
	}
	out := domain.Page[E]{Items: make([]E, 0, len(entities)), Total: page.Total, Offset: page.Offset, Limit: page.Limit}
	for _, entity := range entities {
		e, err := r.mapper.Join(entity)
		if err != nil {
			return domain.Page[E]{}, err
		}
		out.Items = append(out.Items, e)
	}
	return out, nil
}

// intersect restricts current (nil meaning unrestricted) to allowed. The
// result is never nil so an empty intersection matches nothing.
func intersect(current, allowed []string) []string {
	out := make([]string, 0, len(allowed))
	if current == nil {
		return append(out, allowed...)
	}
	keep := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		keep[id] = struct{}{}
	}
	for _, id := range current {
		if _, ok := keep[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func chunk[T any](items []T, size int) [][]T {
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
