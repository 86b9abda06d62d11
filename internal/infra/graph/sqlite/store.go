// Package sqlite provides the embedded SQLite graph store backed by the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"opensilex/internal/infra/graph/sqlgraph"
)

const driverName = "sqlite"

// Dialect is the SQLite flavour of the shared graph SQL.
var Dialect = sqlgraph.Dialect{
	Name:              driverName,
	Placeholder:       sqlgraph.QuestionPlaceholder,
	IsUniqueViolation: isUniqueViolation,
}

// Store is a sqlgraph store over a SQLite file.
type Store struct {
	*sqlgraph.Store
	path string
}

// NewStore opens (creating when needed) the SQLite database at path and
// applies the graph DDL.
func NewStore(ctx context.Context, path string, vocab sqlgraph.Vocabulary) (*Store, error) {
	if path == "" {
		path = "opensilex.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open(driverName, dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := sqlgraph.Migrate(ctx, db, sqlgraph.SQLiteDDL()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: sqlgraph.New(db, Dialect, vocab), path: path}, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func dsn(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func isUniqueViolation(err error) bool {
	var serr *msqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
