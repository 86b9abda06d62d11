package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"opensilex/pkg/domain"
	"opensilex/testutil"
)

const testDSNEnv = "OPENSILEX_TEST_POSTGRES_DSN"

func TestNewStoreOpenError(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) {
		return nil, errors.New("boom")
	})
	defer restore()
	if _, err := NewStore(context.Background(), "", nil); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestNewStorePingError(t *testing.T) {
	var gotDriver, gotDSN string
	restore := OverrideSQLOpen(func(driver, dsn string) (*sql.DB, error) {
		gotDriver, gotDSN = driver, dsn
		return sql.Open("pgx", "postgres://invalid:1/none?connect_timeout=1")
	})
	defer restore()
	if _, err := NewStore(context.Background(), "", nil); err == nil || !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping error, got %v", err)
	}
	if gotDriver != defaultDriver || gotDSN != defaultDSN {
		t.Fatalf("unexpected open arguments %q %q", gotDriver, gotDSN)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	wrapped := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	if !isUniqueViolation(wrapped) {
		t.Fatalf("expected wrapped unique violation to be detected")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) || isUniqueViolation(errors.New("other")) {
		t.Fatalf("unexpected match")
	}
	if Dialect.Placeholder(3) != "$3" {
		t.Fatalf("unexpected placeholder %q", Dialect.Placeholder(3))
	}
}

func TestStoreContractIntegration(t *testing.T) {
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}
	testutil.GraphStoreContract(t, func(t *testing.T) domain.GraphStore {
		ctx := context.Background()
		store, err := NewStore(ctx, dsn, nil)
		if err != nil {
			t.Fatalf("open postgres: %v", err)
		}
		if _, err := store.DB().ExecContext(ctx, "TRUNCATE TABLE graph_quads, graph_resources"); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}
