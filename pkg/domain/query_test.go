package domain

import "testing"

func moveRecords() []GraphRecord {
	return []GraphRecord{
		{ID: "http://ex/id/move.c", Type: ClassMove, Graph: "g1", Fields: Fields{"from": {"http://ex/f/a"}, "start": {"2024-03-01T00:00:00Z"}, "description": {"Greenhouse transfer"}}},
		{ID: "http://ex/id/move.a", Type: ClassMove, Graph: "g1", Fields: Fields{"from": {"http://ex/f/b"}, "start": {"2024-01-01T00:00:00Z"}, "targets": {"t1", "t2"}}},
		{ID: "http://ex/id/move.b", Type: ClassMove, Graph: "g2", Fields: Fields{"from": {"http://ex/f/a"}, "start": {"2024-02-01T00:00:00Z"}}},
		{ID: "http://ex/id/fac.a", Type: ClassFacility, Graph: "g1", Fields: Fields{"name": {"North"}}},
	}
}

func ids(items []GraphRecord) []string {
	out := make([]string, len(items))
	for i, r := range items {
		out[i] = r.ID
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestApplyQueryOperators(t *testing.T) {
	cases := []struct {
		name string
		q    GraphQuery
		want []string
	}{
		{"type only sorted by id", GraphQuery{Type: ClassMove}, []string{"http://ex/id/move.a", "http://ex/id/move.b", "http://ex/id/move.c"}},
		{"eq", GraphQuery{Type: ClassMove}.Where("from", OpEq, "http://ex/f/a"), []string{"http://ex/id/move.b", "http://ex/id/move.c"}},
		{"in multi-valued", GraphQuery{Type: ClassMove}.Where("targets", OpIn, "t2", "t9"), []string{"http://ex/id/move.a"}},
		{"contains case-insensitive", GraphQuery{Type: ClassMove}.Where("description", OpContains, "greenHOUSE"), []string{"http://ex/id/move.c"}},
		{"gte", GraphQuery{Type: ClassMove}.Where("start", OpGte, "2024-02-01T00:00:00Z"), []string{"http://ex/id/move.b", "http://ex/id/move.c"}},
		{"lte", GraphQuery{Type: ClassMove}.Where("start", OpLte, "2024-01-15T00:00:00Z"), []string{"http://ex/id/move.a"}},
		{"graph", GraphQuery{Type: ClassMove, Graph: "g2"}, []string{"http://ex/id/move.b"}},
		{"empty ids match nothing", GraphQuery{Type: ClassMove, IDs: []string{}}, []string{}},
		{"ids", GraphQuery{Type: ClassMove, IDs: []string{"http://ex/id/move.c"}}, []string{"http://ex/id/move.c"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page := ApplyQuery(moveRecords(), tc.q)
			if got := ids(page.Items); !equalStrings(got, tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
			if page.Total != len(tc.want) {
				t.Fatalf("total %d want %d", page.Total, len(tc.want))
			}
		})
	}
}

func TestApplyQueryOrderAndPagination(t *testing.T) {
	q := GraphQuery{Type: ClassMove, OrderBy: []OrderBy{{Field: "start", Desc: true}}, Offset: 1, Limit: 1}
	page := ApplyQuery(moveRecords(), q)
	if page.Total != 3 {
		t.Fatalf("expected total 3, got %d", page.Total)
	}
	if got := ids(page.Items); !equalStrings(got, []string{"http://ex/id/move.b"}) {
		t.Fatalf("unexpected page %v", got)
	}
	if !page.HasMore() {
		t.Fatalf("expected more results after offset 1 limit 1")
	}

	past := ApplyQuery(moveRecords(), GraphQuery{Type: ClassMove, Offset: 10})
	if len(past.Items) != 0 || past.Total != 3 || past.HasMore() {
		t.Fatalf("unexpected page past end: %+v", past)
	}
}

func TestApplyQueryReturnsClones(t *testing.T) {
	records := moveRecords()
	page := ApplyQuery(records, GraphQuery{IDs: []string{"http://ex/id/move.a"}})
	page.Items[0].Fields["from"][0] = "mutated"
	if records[1].Fields.Get("from") != "http://ex/f/b" {
		t.Fatalf("source record mutated through query result")
	}
}

func TestFieldsHelpers(t *testing.T) {
	f := Fields{}
	f.Set("name", "x")
	f.Set("empty", "")
	f.SetAll("tags", []string{"b", "a"})
	f.SetAll("none", nil)
	if got := f.Names(); !equalStrings(got, []string{"name", "tags"}) {
		t.Fatalf("unexpected names %v", got)
	}
	if f.Get("missing") != "" || f.Get("tags") != "b" {
		t.Fatalf("unexpected Get results")
	}
	if (GraphRecord{}).Clone().Fields == nil {
		t.Fatalf("clone should never return nil fields")
	}
}
