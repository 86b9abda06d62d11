package domain

import (
	"sort"
	"strings"
)

// Operator is a graph query comparison.
type Operator string

// Supported comparison operators. Values compare as strings; datetime fields are
// stored as RFC 3339 UTC so lexical ordering matches chronological ordering.
const (
	OpEq       Operator = "eq"
	OpIn       Operator = "in"
	OpContains Operator = "contains"
	OpGte      Operator = "gte"
	OpLte      Operator = "lte"
)

// Condition restricts a field. A multi-valued field matches when any of its
// values satisfies the operator.
type Condition struct {
	Field  string
	Op     Operator
	Values []string
}

// OrderBy sorts results on a field. Records missing the field sort first.
type OrderBy struct {
	Field string
	Desc  bool
}

// GraphQuery selects graph records of one rdf:type.
type GraphQuery struct {
	Type  string
	Graph string
	// IDs, when non-nil, restricts results to these URIs. An empty non-nil slice
	// matches nothing.
	IDs        []string
	Conditions []Condition
	OrderBy    []OrderBy
	Offset     int
	// Limit of zero means unlimited.
	Limit int
}

// Where appends a condition and returns the query for chaining.
func (q GraphQuery) Where(field string, op Operator, values ...string) GraphQuery {
	q.Conditions = append(append([]Condition(nil), q.Conditions...), Condition{Field: field, Op: op, Values: values})
	return q
}

// Matches reports whether rec satisfies the type, graph, id and field
// restrictions of q. Pagination is not considered.
func (q GraphQuery) Matches(rec GraphRecord) bool {
	if q.Type != "" && rec.Type != q.Type {
		return false
	}
	if q.Graph != "" && rec.Graph != q.Graph {
		return false
	}
	if q.IDs != nil && !containsString(q.IDs, rec.ID) {
		return false
	}
	for _, c := range q.Conditions {
		if !c.matches(rec.Fields[c.Field]) {
			return false
		}
	}
	return true
}

func (c Condition) matches(values []string) bool {
	for _, v := range values {
		switch c.Op {
		case OpEq, OpIn:
			if containsString(c.Values, v) {
				return true
			}
		case OpContains:
			for _, want := range c.Values {
				if strings.Contains(strings.ToLower(v), strings.ToLower(want)) {
					return true
				}
			}
		case OpGte:
			if len(c.Values) > 0 && v >= c.Values[0] {
				return true
			}
		case OpLte:
			if len(c.Values) > 0 && v <= c.Values[0] {
				return true
			}
		}
	}
	return false
}

// ApplyQuery filters, orders and paginates records according to q. Backends that
// narrow candidates natively still run the result through ApplyQuery so every
// store exposes identical search semantics.
func ApplyQuery(records []GraphRecord, q GraphQuery) Page[GraphRecord] {
	matched := make([]GraphRecord, 0, len(records))
	for _, rec := range records {
		if q.Matches(rec) {
			matched = append(matched, rec)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		for _, o := range q.OrderBy {
			a, b := matched[i].Fields.Get(o.Field), matched[j].Fields.Get(o.Field)
			if a == b {
				continue
			}
			if o.Desc {
				return a > b
			}
			return a < b
		}
		return matched[i].ID < matched[j].ID
	})
	total := len(matched)
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if q.Limit > 0 && offset+q.Limit < total {
		end = offset + q.Limit
	}
	items := make([]GraphRecord, 0, end-offset)
	for _, rec := range matched[offset:end] {
		items = append(items, rec.Clone())
	}
	return Page[GraphRecord]{Items: items, Total: total, Offset: offset, Limit: q.Limit}
}

func containsString(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
