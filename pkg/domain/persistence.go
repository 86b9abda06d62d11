package domain

import "context"

// GraphTx is an open graph store transaction. Writes are invisible to other
// readers until Commit succeeds. Rollback after Commit is a no-op.
type GraphTx interface {
	CreateRecord(ctx context.Context, graph string, rec GraphRecord) error
	// CreateRecords inserts recs in chunks of at most batchSize statements.
	CreateRecords(ctx context.Context, graph string, recs []GraphRecord, batchSize int) error
	UpdateRecord(ctx context.Context, rec GraphRecord) error
	DeleteRecord(ctx context.Context, rdfType, id string) error
	GetByID(ctx context.Context, rdfType, id string) (GraphRecord, bool, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context, cause error) error
}

// GraphStore abstracts the RDF backend holding ontology-typed records in named
// graphs.
type GraphStore interface {
	Begin(ctx context.Context) (GraphTx, error)
	GetByID(ctx context.Context, rdfType, id string) (GraphRecord, bool, error)
	// GetByIDs returns the records that exist, in the order of ids.
	GetByIDs(ctx context.Context, rdfType string, ids []string) ([]GraphRecord, error)
	Search(ctx context.Context, q GraphQuery) (Page[GraphRecord], error)
	// ExistsAny reports whether at least one id exists. An empty graph name
	// searches every graph.
	ExistsAny(ctx context.Context, graph string, ids []string) (bool, error)
	ExistsAll(ctx context.Context, graph string, ids []string) (bool, error)
	Driver() string
}

// DocumentSession is a session-scoped document store transaction.
type DocumentSession interface {
	InsertOne(ctx context.Context, collection string, doc DocumentRecord) error
	InsertMany(ctx context.Context, collection string, docs []DocumentRecord) error
	// ReplaceOne replaces the document with doc.ID in place. With upsert the
	// document is created when missing; without it a missing target is a
	// NotFoundError.
	ReplaceOne(ctx context.Context, collection string, doc DocumentRecord, upsert bool) error
	// DeleteOne removes a document, reporting whether it existed.
	DeleteOne(ctx context.Context, collection, id string) (bool, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DocumentStore abstracts the document backend holding positional and other
// schema-flexible payloads keyed by short id.
type DocumentStore interface {
	StartSession(ctx context.Context) (DocumentSession, error)
	FindByID(ctx context.Context, collection, id string) (DocumentRecord, bool, error)
	// Find returns the matching documents ordered by id.
	Find(ctx context.Context, collection string, filter DocumentFilter) ([]DocumentRecord, error)
	Driver() string
}
