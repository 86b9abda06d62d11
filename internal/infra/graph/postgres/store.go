// Package postgres provides the Postgres graph store, registering pgx as the
// database/sql driver and applying the graph DDL on startup.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"opensilex/internal/infra/graph/sqlgraph"
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/opensilex?sslmode=disable"
	uniqueCode    = "23505"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Dialect is the Postgres flavour of the shared graph SQL.
var Dialect = sqlgraph.Dialect{
	Name:              "postgres",
	Placeholder:       sqlgraph.DollarPlaceholder,
	IsUniqueViolation: isUniqueViolation,
}

// Store is a sqlgraph store over Postgres.
type Store struct {
	*sqlgraph.Store
}

// NewStore opens a Postgres-backed graph store using dsn (falls back to
// defaultDSN), pings it and applies the graph DDL.
func NewStore(ctx context.Context, dsn string, vocab sqlgraph.Vocabulary) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := sqlgraph.Migrate(ctx, db, sqlgraph.PostgresDDL()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: sqlgraph.New(db, Dialect, vocab)}, nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueCode
}
