package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAnyUses(t *testing.T) {
	dir := t.TempDir()
	src := `package x

type Box[T any] struct{ V T }

type Bag map[string]any

func (b Bag) Get(k string) any { return b[k] }

var loose []any

func typed(v any) string {
	s, _ := v.(string)
	return s
}
`
	if err := os.WriteFile(filepath.Join(dir, "x.go"), []byte(src), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "x_test.go"), []byte("package x\n\nvar _ any\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	uses, err := AnyUses(dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	got := map[string]int{}
	for _, u := range uses {
		got[u.Symbol]++
	}
	want := map[string]int{"Bag": 2, "loose": 1, "typed": 1}
	if len(got) != len(want) {
		t.Fatalf("unexpected uses %v", uses)
	}
	for sym, n := range want {
		if got[sym] != n {
			t.Fatalf("%s: got %d uses, want %d (%v)", sym, got[sym], n, uses)
		}
	}
	if _, err := AnyUses(filepath.Join(dir, "missing")); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}
