package core

import "opensilex/pkg/domain"

// Assembler merges graph records with their optional document records.
type Assembler struct {
	identity *Identity
}

// NewAssembler returns an assembler keying documents by identity.Short.
func NewAssembler(identity *Identity) Assembler {
	return Assembler{identity: identity}
}

// Merge combines rec with doc. A nil doc yields an entity without payload.
// The document id is not checked against rec.
func (a Assembler) Merge(rec domain.GraphRecord, doc *domain.DocumentRecord) domain.LogicalEntity {
	entity := domain.LogicalEntity{
		ID:     rec.ID,
		Type:   rec.Type,
		Graph:  rec.Graph,
		Fields: rec.Fields.Clone(),
	}
	if entity.Fields == nil {
		entity.Fields = domain.Fields{}
	}
	if doc != nil {
		entity.Payload = doc.Payload.Clone()
		if entity.Payload == nil {
			entity.Payload = domain.Payload{}
		}
	}
	return entity
}

// MergeMany merges recs in order with the documents keyed by short id.
// Documents without a graph record, or whose uri names another record, are
// ignored.
func (a Assembler) MergeMany(recs []domain.GraphRecord, docsByID map[string]domain.DocumentRecord) []domain.LogicalEntity {
	out := make([]domain.LogicalEntity, 0, len(recs))
	for _, rec := range recs {
		var doc *domain.DocumentRecord
		if d, ok := docsByID[a.identity.Short(rec.ID)]; ok && d.URI == rec.ID {
			doc = &d
		}
		out = append(out, a.Merge(rec, doc))
	}
	return out
}

// IndexDocuments keys docs by their id.
func IndexDocuments(docs []domain.DocumentRecord) map[string]domain.DocumentRecord {
	out := make(map[string]domain.DocumentRecord, len(docs))
	for _, doc := range docs {
		out[doc.ID] = doc
	}
	return out
}
