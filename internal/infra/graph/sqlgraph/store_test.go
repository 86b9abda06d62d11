package sqlgraph

import (
	"strings"
	"testing"

	"opensilex/pkg/domain"
	"opensilex/pkg/ontology"
)

func TestSplitStatements(t *testing.T) {
	for name, ddl := range map[string]string{"sqlite": SQLiteDDL(), "postgres": PostgresDDL()} {
		stmts := SplitStatements(ddl)
		if len(stmts) != 5 {
			t.Fatalf("%s: expected 5 statements, got %d", name, len(stmts))
		}
		for _, stmt := range stmts {
			if strings.HasPrefix(strings.TrimSpace(stmt), "--") {
				t.Fatalf("%s: statement starts with comment: %q", name, stmt)
			}
			if !strings.HasSuffix(strings.TrimSpace(stmt), ";") {
				t.Fatalf("%s: statement missing terminator: %q", name, stmt)
			}
		}
	}
	if got := SplitStatements("SELECT 1;\nSELECT 2"); len(got) != 2 || got[1] != "SELECT 2" {
		t.Fatalf("unterminated tail lost: %v", got)
	}
}

func TestBuilderPlaceholders(t *testing.T) {
	b := &builder{dialect: Dialect{Placeholder: DollarPlaceholder}}
	if got := b.arg("x") + " " + b.args([]string{"a", "b"}); got != "$1 $2, $3" {
		t.Fatalf("unexpected placeholders %q", got)
	}
	if len(b.values) != 3 {
		t.Fatalf("expected 3 bound values, got %d", len(b.values))
	}
	q := &builder{dialect: Dialect{Placeholder: QuestionPlaceholder}}
	if got := q.args([]string{"a", "b"}); got != "?, ?" {
		t.Fatalf("unexpected placeholders %q", got)
	}
}

func TestChunksAndDedupe(t *testing.T) {
	got := chunks([]string{"a", "b", "c", "d", "e"}, 2)
	if len(got) != 3 || len(got[2]) != 1 {
		t.Fatalf("unexpected chunks %v", got)
	}
	if got := chunks([]string{"a", "b"}, 0); len(got) != 1 {
		t.Fatalf("non-positive size should yield a single chunk, got %v", got)
	}
	if got := dedupe([]string{"a", "b", "a"}); len(got) != 2 {
		t.Fatalf("unexpected dedupe %v", got)
	}
}

func TestSchemaVocabulary(t *testing.T) {
	schema, err := ontology.Default()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	v := SchemaVocabulary(schema)
	pred := v.Predicate(domain.ClassFacility, "name")
	if pred != domain.NamespaceRDFS+"label" {
		t.Fatalf("unexpected predicate %s", pred)
	}
	if v.Field(domain.ClassFacility, pred) != "name" {
		t.Fatalf("reverse mapping failed")
	}
	if p := v.Predicate("http://unknown/Class", "note"); p != fallbackPredicate+"note" {
		t.Fatalf("unexpected fallback predicate %s", p)
	}
	if f := v.Field("http://unknown/Class", fallbackPredicate+"note"); f != "note" {
		t.Fatalf("unexpected fallback field %s", f)
	}
	if f := v.Field(domain.ClassFacility, "http://other/pred"); f != "http://other/pred" {
		t.Fatalf("unmapped predicate should pass through, got %s", f)
	}
}
