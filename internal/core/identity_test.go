package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	graphmemory "opensilex/internal/infra/graph/memory"
	"opensilex/pkg/domain"
)

func TestResolveGeneratesUnderNamespace(t *testing.T) {
	id := NewIdentity("", &CounterSource{}, graphmemory.NewStore())
	first, err := id.Resolve("", "move")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if first != "http://opensilex.dev/id/move.1" {
		t.Fatalf("unexpected generated id %s", first)
	}
	second, _ := id.Resolve("", "facility")
	if second != "http://opensilex.dev/id/facility.2" {
		t.Fatalf("counter must be shared across kinds, got %s", second)
	}
	if id.Short(second) != "facility.2" {
		t.Fatalf("short of generated id = %s", id.Short(second))
	}
}

func TestResolveUUIDSourceIsUnique(t *testing.T) {
	id := NewIdentity("urn:test:", nil, graphmemory.NewStore())
	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		got, err := id.Resolve("", "move")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if !strings.HasPrefix(got, "urn:test:move.") {
			t.Fatalf("unexpected prefix %s", got)
		}
		if _, dup := seen[got]; dup {
			t.Fatalf("duplicate generated id %s", got)
		}
		seen[got] = struct{}{}
	}
}

func TestResolveKeepsValidCandidate(t *testing.T) {
	id := NewIdentity("", &CounterSource{}, graphmemory.NewStore())
	for _, candidate := range []string{"test:move-1", "http://example.org/move/1", "urn:uuid:1234"} {
		got, err := id.Resolve(candidate, "move")
		if err != nil || got != candidate {
			t.Fatalf("Resolve(%q) = %q, %v", candidate, got, err)
		}
	}
}

func TestResolveRejectsInvalidCandidates(t *testing.T) {
	id := NewIdentity("", &CounterSource{}, graphmemory.NewStore())
	for _, candidate := range []string{"   ", "move-1", "http://x/a b", "test:", "http://x/\n"} {
		_, err := id.Resolve(candidate, "move")
		var invalid domain.InvalidIdentifierError
		if !errors.As(err, &invalid) {
			t.Fatalf("Resolve(%q): expected InvalidIdentifierError, got %v", candidate, err)
		}
	}
	if _, err := id.Resolve("", ""); err == nil {
		t.Fatalf("generating without a kind must fail")
	}
}

func TestShort(t *testing.T) {
	id := NewIdentity("http://opensilex.dev/id/", nil, nil, "http://opensilex.dev/", "http://www.opensilex.org/vocabulary/oeev#")
	tests := []struct {
		in, want string
	}{
		{"http://opensilex.dev/id/move.42", "move.42"},
		{"http://opensilex.dev/other/x", "other/x"},
		{"http://www.opensilex.org/vocabulary/oeev#Move", "Move"},
		{"test:move-1", "move-1"},
		{"urn:uuid:1234", "uuid:1234"},
		{"http://example.org/facility/f1", "f1"},
		{"http://example.org/facility/f1/", "f1"},
		{"http://example.org/ns#thing", "thing"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := id.Short(tt.in); got != tt.want {
			t.Errorf("Short(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExistsAnywhereChecksEveryGraph(t *testing.T) {
	ctx := context.Background()
	graph := graphmemory.NewStore()
	tx, err := graph.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.CreateRecord(ctx, "urn:g:b", domain.GraphRecord{ID: "test:x", Type: "T"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	id := NewIdentity("", nil, graph)
	if ok, err := id.ExistsAnywhere(ctx, "test:x"); err != nil || !ok {
		t.Fatalf("expected test:x to exist, got %v %v", ok, err)
	}
	if ok, err := id.ExistsAnywhere(ctx, "test:y"); err != nil || ok {
		t.Fatalf("expected test:y to be absent, got %v %v", ok, err)
	}
}
