// Package domain defines the records, queries, errors and store contracts shared
// by the OpenSILEX coordination layer and its graph/document backends.
package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Fields holds graph-side attribute values keyed by schema field name. Every
// field is multi-valued; single-valued fields carry exactly one element.
type Fields map[string][]string

// Get returns the first value of field, or "" when unset.
func (f Fields) Get(field string) string {
	if vals := f[field]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// Set replaces field with a single value. Empty values remove the field.
func (f Fields) Set(field, value string) {
	if value == "" {
		delete(f, field)
		return
	}
	f[field] = []string{value}
}

// SetAll replaces field with values. An empty slice removes the field.
func (f Fields) SetAll(field string, values []string) {
	if len(values) == 0 {
		delete(f, field)
		return
	}
	f[field] = append([]string(nil), values...)
}

// Clone returns a deep copy.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Names returns the populated field names in lexical order.
func (f Fields) Names() []string {
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Payload is the schema-flexible nested structure stored on the document side.
type Payload map[string]any

// Normalize returns a deep copy of the payload in its JSON-decoded form:
// objects become map[string]any, arrays []any and numbers float64. It fails
// for values JSON cannot encode, such as NaN.
func (p Payload) Normalize() (Payload, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("payload is not JSON encodable: %w", err)
	}
	var out Payload
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("payload decode: %w", err)
	}
	return out, nil
}

// Clone returns a deep copy of the nested maps and slices of the payload.
// Other values are shared; normalized payloads hold only immutable scalars
// besides maps and slices.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	return Payload(cloneValue(map[string]any(p)).(map[string]any))
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case Payload:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []float64:
		return append([]float64(nil), t...)
	default:
		return v
	}
}

// GraphRecord is the RDF-side representation of an entity: its rdf:type, the
// named graph it lives in, and the attribute values mapped to predicates by the
// ontology schema.
type GraphRecord struct {
	ID     string `json:"uri"`
	Type   string `json:"rdf_type"`
	Graph  string `json:"graph,omitempty"`
	Fields Fields `json:"fields"`
}

// Clone returns a deep copy of the record.
func (r GraphRecord) Clone() GraphRecord {
	cp := r
	cp.Fields = r.Fields.Clone()
	if cp.Fields == nil {
		cp.Fields = Fields{}
	}
	return cp
}

// DocumentRecord is the document-store-side representation of an entity. ID is
// the short form of URI and is the document key.
type DocumentRecord struct {
	ID      string  `json:"_id"`
	URI     string  `json:"uri"`
	Payload Payload `json:"payload"`
}

// Clone returns a deep copy of the record.
func (r DocumentRecord) Clone() DocumentRecord {
	cp := r
	cp.Payload = r.Payload.Clone()
	return cp
}

// LogicalEntity is the merged caller-visible view of a graph record and its
// optional document record. Payload is nil when no document record exists.
type LogicalEntity struct {
	ID      string
	Type    string
	Graph   string
	Fields  Fields
	Payload Payload
}

// HasPayload reports whether the entity carries a document-side payload.
func (e LogicalEntity) HasPayload() bool { return e.Payload != nil }

// GraphRecord projects the graph-side part of the entity.
func (e LogicalEntity) GraphRecord() GraphRecord {
	return GraphRecord{ID: e.ID, Type: e.Type, Graph: e.Graph, Fields: e.Fields.Clone()}
}

// Page is one slice of a paginated result set.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// HasMore reports whether further items exist past this page.
func (p Page[T]) HasMore() bool {
	return p.Offset+len(p.Items) < p.Total
}
