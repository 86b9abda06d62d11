package sqlgraph

import (
	"strings"

	"opensilex/pkg/ontology"
)

// fallbackPredicate prefixes fields the vocabulary does not map.
const fallbackPredicate = "urn:opensilex:field:"

// Vocabulary translates record fields to RDF predicates and back.
type Vocabulary interface {
	Predicate(rdfType, field string) string
	Field(rdfType, predicate string) string
}

// SchemaVocabulary maps fields through an ontology schema. Unmapped fields and
// classes fall back to a urn predicate carrying the field name.
func SchemaVocabulary(schema *ontology.Schema) Vocabulary {
	return schemaVocabulary{schema: schema}
}

type schemaVocabulary struct {
	schema *ontology.Schema
}

func (v schemaVocabulary) Predicate(rdfType, field string) string {
	if v.schema != nil {
		if class, ok := v.schema.Class(rdfType); ok {
			if p, ok := class.Predicate(field); ok {
				return p
			}
		}
	}
	return fallbackPredicate + field
}

func (v schemaVocabulary) Field(rdfType, predicate string) string {
	if name, ok := strings.CutPrefix(predicate, fallbackPredicate); ok {
		return name
	}
	if v.schema != nil {
		if class, ok := v.schema.Class(rdfType); ok {
			if name, ok := class.FieldFor(predicate); ok {
				return name
			}
		}
	}
	return predicate
}
