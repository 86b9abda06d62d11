// Package ontology loads the class mapping that tells the graph store which
// rdf:type and predicates back each entity field, and validates graph records
// against it before any transaction is opened.
package ontology

import (
	_ "embed"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"opensilex/pkg/domain"
)

//go:embed schema.yaml
var defaultSchema []byte

// Kind is the value kind of a field.
type Kind string

// Field kinds.
const (
	KindLiteral   Kind = "literal"
	KindReference Kind = "reference"
	KindDatetime  Kind = "datetime"
	KindBoolean   Kind = "boolean"
)

// Field maps an entity field to an RDF predicate.
type Field struct {
	Predicate string `yaml:"predicate"`
	Kind      Kind   `yaml:"kind"`
	Required  bool   `yaml:"required,omitempty"`
	Multi     bool   `yaml:"multi,omitempty"`
}

// Class maps an entity type to its rdf:type, document collection and fields.
type Class struct {
	Name       string           `yaml:"name"`
	URI        string           `yaml:"uri"`
	IDPrefix   string           `yaml:"id_prefix"`
	Collection string           `yaml:"collection"`
	Graph      string           `yaml:"graph,omitempty"`
	Fields     map[string]Field `yaml:"fields"`
}

// Schema is a loaded set of class mappings. URIs and predicates are expanded
// to full IRIs at load time.
type Schema struct {
	Namespaces map[string]string `yaml:"namespaces"`
	Classes    []Class           `yaml:"classes"`

	byURI  map[string]int
	byName map[string]int
}

// Default returns the embedded schema covering the built-in aggregates.
func Default() (*Schema, error) {
	return Parse(defaultSchema)
}

// LoadFile reads a schema from a YAML file.
func LoadFile(path string) (*Schema, error) {
	f, err := os.Open(path) // #nosec G304 -- operator supplied schema path
	if err != nil {
		return nil, fmt.Errorf("open schema: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// Load decodes a YAML schema from r.
func Load(r io.Reader) (*Schema, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Parse(data)
}

// Parse decodes and indexes a YAML schema.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if err := s.index(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Schema) index() error {
	s.byURI = make(map[string]int, len(s.Classes))
	s.byName = make(map[string]int, len(s.Classes))
	for i := range s.Classes {
		c := &s.Classes[i]
		if c.Name == "" || c.URI == "" {
			return fmt.Errorf("schema class %d: name and uri are required", i)
		}
		c.URI = s.Expand(c.URI)
		if c.Collection == "" {
			c.Collection = strings.ToLower(c.Name)
		}
		if c.IDPrefix == "" {
			c.IDPrefix = strings.ToLower(c.Name)
		}
		seen := make(map[string]string, len(c.Fields))
		for name, f := range c.Fields {
			if f.Predicate == "" {
				return fmt.Errorf("schema class %s: field %s has no predicate", c.Name, name)
			}
			f.Predicate = s.Expand(f.Predicate)
			if f.Kind == "" {
				f.Kind = KindLiteral
			}
			switch f.Kind {
			case KindLiteral, KindReference, KindDatetime, KindBoolean:
			default:
				return fmt.Errorf("schema class %s: field %s has unknown kind %q", c.Name, name, f.Kind)
			}
			if other, dup := seen[f.Predicate]; dup {
				return fmt.Errorf("schema class %s: fields %s and %s share predicate %s", c.Name, other, name, f.Predicate)
			}
			seen[f.Predicate] = name
			c.Fields[name] = f
		}
		if _, dup := s.byURI[c.URI]; dup {
			return fmt.Errorf("schema class %s: duplicate uri %s", c.Name, c.URI)
		}
		s.byURI[c.URI] = i
		s.byName[c.Name] = i
	}
	return nil
}

// Expand turns a CURIE with a declared prefix into a full IRI. Anything else
// is returned unchanged.
func (s *Schema) Expand(curie string) string {
	prefix, local, ok := strings.Cut(curie, ":")
	if !ok || strings.HasPrefix(local, "//") {
		return curie
	}
	if ns, ok := s.Namespaces[prefix]; ok {
		return ns + local
	}
	return curie
}

// Class looks up a class by rdf:type IRI.
func (s *Schema) Class(rdfType string) (Class, bool) {
	i, ok := s.byURI[rdfType]
	if !ok {
		return Class{}, false
	}
	return s.Classes[i], true
}

// ClassByName looks up a class by its short name.
func (s *Schema) ClassByName(name string) (Class, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Class{}, false
	}
	return s.Classes[i], true
}

// Predicate returns the predicate IRI backing field.
func (c Class) Predicate(field string) (string, bool) {
	f, ok := c.Fields[field]
	return f.Predicate, ok
}

// FieldFor returns the field name mapped to predicate.
func (c Class) FieldFor(predicate string) (string, bool) {
	for name, f := range c.Fields {
		if f.Predicate == predicate {
			return name, true
		}
	}
	return "", false
}

// Validate checks fields against the class mapping.
func (c Class) Validate(fields domain.Fields) error {
	var problems []string
	for _, name := range fields.Names() {
		f, ok := c.Fields[name]
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown field %s", name))
			continue
		}
		values := fields[name]
		if !f.Multi && len(values) > 1 {
			problems = append(problems, fmt.Sprintf("field %s accepts a single value, got %d", name, len(values)))
		}
		for _, v := range values {
			if msg := f.check(v); msg != "" {
				problems = append(problems, fmt.Sprintf("field %s: %s", name, msg))
			}
		}
	}
	required := make([]string, 0)
	for name, f := range c.Fields {
		if f.Required && len(fields[name]) == 0 {
			required = append(required, name)
		}
	}
	sort.Strings(required)
	for _, name := range required {
		problems = append(problems, fmt.Sprintf("field %s is required", name))
	}
	if len(problems) > 0 {
		return domain.ValidationError{Type: c.Name, Problems: problems}
	}
	return nil
}

func (f Field) check(v string) string {
	switch f.Kind {
	case KindReference:
		u, err := url.Parse(v)
		if err != nil || u.Scheme == "" || strings.ContainsAny(v, " \t\n") {
			return fmt.Sprintf("%q is not an absolute URI", v)
		}
	case KindDatetime:
		if _, err := time.Parse(time.RFC3339, v); err != nil {
			return fmt.Sprintf("%q is not an RFC 3339 timestamp", v)
		}
	case KindBoolean:
		if v != "true" && v != "false" {
			return fmt.Sprintf("%q is not a boolean", v)
		}
	}
	return ""
}
