package core

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"opensilex/internal/blob"
	"opensilex/internal/infra/document/blobdoc"
	docmemory "opensilex/internal/infra/document/memory"
	graphmemory "opensilex/internal/infra/graph/memory"
	"opensilex/internal/infra/graph/postgres"
	"opensilex/internal/infra/graph/sqlgraph"
	"opensilex/internal/infra/graph/sqlite"
	"opensilex/pkg/domain"
	"opensilex/pkg/ontology"
)

// GraphDriver identifies a graph store backend.
type GraphDriver string

const (
	GraphMemory   GraphDriver = "memory"   // in-memory only (tests / ephemeral)
	GraphSQLite   GraphDriver = "sqlite"   // embedded sqlite file
	GraphPostgres GraphDriver = "postgres" // PostgreSQL server
)

// DocumentDriver identifies a document store backend.
type DocumentDriver string

const (
	DocumentMemory DocumentDriver = "memory" // in-memory only
	DocumentBlob   DocumentDriver = "blob"   // JSON objects in the configured blob store
)

// Config selects and parameterizes the stores behind a Service.
type Config struct {
	GraphDriver    GraphDriver
	SQLitePath     string
	PostgresDSN    string
	DocumentDriver DocumentDriver
	Blob           blob.Config
	SchemaPath     string
	MaxPerQuery    int
	Namespace      string
}

// LoadConfigFromEnv reads the store configuration:
//
//	OPENSILEX_GRAPH_DRIVER: memory|sqlite|postgres (default sqlite)
//	OPENSILEX_SQLITE_PATH: sqlite file (default ./opensilex.db)
//	OPENSILEX_POSTGRES_DSN: postgres DSN when driver=postgres
//	OPENSILEX_DOCUMENT_DRIVER: memory|blob (default blob)
//	OPENSILEX_BLOB_*: blob backend, see blob.ConfigFromEnv
//	OPENSILEX_SCHEMA_PATH: YAML ontology mapping (default embedded)
//	OPENSILEX_MAX_PER_QUERY: batch cap (default 1000)
//	OPENSILEX_ID_NAMESPACE: namespace of generated URIs
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		GraphDriver:    GraphDriver(os.Getenv("OPENSILEX_GRAPH_DRIVER")),
		SQLitePath:     os.Getenv("OPENSILEX_SQLITE_PATH"),
		PostgresDSN:    os.Getenv("OPENSILEX_POSTGRES_DSN"),
		DocumentDriver: DocumentDriver(os.Getenv("OPENSILEX_DOCUMENT_DRIVER")),
		Blob:           blob.ConfigFromEnv(),
		SchemaPath:     os.Getenv("OPENSILEX_SCHEMA_PATH"),
		Namespace:      os.Getenv("OPENSILEX_ID_NAMESPACE"),
		MaxPerQuery:    DefaultMaxPerQuery,
	}
	if cfg.GraphDriver == "" {
		cfg.GraphDriver = GraphSQLite
	}
	if cfg.DocumentDriver == "" {
		cfg.DocumentDriver = DocumentBlob
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if v := os.Getenv("OPENSILEX_MAX_PER_QUERY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("OPENSILEX_MAX_PER_QUERY must be a positive integer, got %q", v)
		}
		cfg.MaxPerQuery = n
	}
	return cfg, nil
}

// LoadSchema reads the ontology mapping at cfg.SchemaPath, or the embedded
// default when unset.
func LoadSchema(cfg Config) (*ontology.Schema, error) {
	if cfg.SchemaPath == "" {
		return ontology.Default()
	}
	return ontology.LoadFile(cfg.SchemaPath)
}

// OpenGraphStore opens the graph backend selected by cfg.
func OpenGraphStore(ctx context.Context, cfg Config, schema *ontology.Schema) (domain.GraphStore, error) {
	vocab := sqlgraph.SchemaVocabulary(schema)
	switch cfg.GraphDriver {
	case GraphMemory:
		return graphmemory.NewStore(), nil
	case GraphSQLite, "":
		store, err := sqlite.NewStore(ctx, cfg.SQLitePath, vocab)
		if err != nil {
			return nil, err
		}
		return store, nil
	case GraphPostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, vocab)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown graph driver %s", cfg.GraphDriver)
	}
}

// OpenDocumentStore opens the document backend selected by cfg.
func OpenDocumentStore(ctx context.Context, cfg Config) (domain.DocumentStore, error) {
	switch cfg.DocumentDriver {
	case DocumentMemory:
		return docmemory.NewStore(), nil
	case DocumentBlob, "":
		blobs, err := blob.Open(ctx, cfg.Blob)
		if err != nil {
			return nil, err
		}
		return blobdoc.New(blobs), nil
	default:
		return nil, fmt.Errorf("unknown document driver %s", cfg.DocumentDriver)
	}
}

// Open builds a Service over the stores selected by cfg.
func Open(ctx context.Context, cfg Config, opts ...ServiceOption) (*Service, error) {
	schema, err := LoadSchema(cfg)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	graph, err := OpenGraphStore(ctx, cfg, schema)
	if err != nil {
		return nil, err
	}
	docs, err := OpenDocumentStore(ctx, cfg)
	if err != nil {
		if c, ok := graph.(interface{ Close() error }); ok {
			_ = c.Close()
		}
		return nil, err
	}
	opts = append([]ServiceOption{
		WithSchema(schema),
		WithMaxPerQuery(cfg.MaxPerQuery),
		WithNamespace(cfg.Namespace),
	}, opts...)
	return NewService(graph, docs, opts...)
}
