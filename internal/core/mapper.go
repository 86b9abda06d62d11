package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"opensilex/pkg/domain"
)

func toPayload(v any) (domain.Payload, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	var p domain.Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}

func fromPayload(p domain.Payload, v any) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(field, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", field, err)
	}
	t = t.UTC()
	return &t, nil
}

func pageWindow(page, size int) (offset, limit int) {
	if size <= 0 {
		return 0, 0
	}
	if page < 0 {
		page = 0
	}
	return page * size, size
}

// EntityMapper stores logical entities as given. Its filter is a graph query;
// the rdf:type of the query is forced to the mapper type.
type EntityMapper struct {
	kind       string
	rdfType    string
	collection string
}

// NewEntityMapper maps raw logical entities of rdfType.
func NewEntityMapper(kind, rdfType, collection string) EntityMapper {
	return EntityMapper{kind: kind, rdfType: rdfType, collection: collection}
}

// Kind returns the id prefix of generated identifiers.
func (m EntityMapper) Kind() string { return m.kind }

// Type returns the mapped rdf:type.
func (m EntityMapper) Type() string { return m.rdfType }

// Collection returns the document collection.
func (m EntityMapper) Collection() string { return m.collection }

// Split copies e.
func (m EntityMapper) Split(e domain.LogicalEntity) (domain.LogicalEntity, error) {
	out := e
	out.Fields = e.Fields.Clone()
	out.Payload = e.Payload.Clone()
	return out, nil
}

// Join returns e unchanged.
func (m EntityMapper) Join(e domain.LogicalEntity) (domain.LogicalEntity, error) {
	return e, nil
}

// Query passes q through without a document filter.
func (m EntityMapper) Query(q domain.GraphQuery) (domain.GraphQuery, *domain.DocumentFilter, error) {
	return q, nil, nil
}

// Move fields and document paths.
const (
	moveDescription = "description"
	moveTargets     = "targets"
	moveStart       = "start"
	moveEnd         = "end"
	moveIsInstant   = "is_instant"
	moveFrom        = "from"
	moveTo          = "to"
	movePublisher   = "publisher"

	// MovePositionPath addresses target position points inside move payloads.
	MovePositionPath = "targets_positions.position.point"
)

type movePayload struct {
	TargetPositions []domain.TargetPosition `json:"targets_positions"`
}

// MoveMapper maps move events. Target positions form the document payload.
type MoveMapper struct{}

// Kind returns "move".
func (MoveMapper) Kind() string { return "move" }

// Type returns the oeev:Move class.
func (MoveMapper) Type() string { return domain.ClassMove }

// Collection returns the move document collection.
func (MoveMapper) Collection() string { return "move" }

// Split maps graph fields and puts target positions in the payload.
func (MoveMapper) Split(e domain.MoveEvent) (domain.LogicalEntity, error) {
	fields := domain.Fields{}
	fields.Set(moveDescription, e.Description)
	fields.SetAll(moveTargets, e.Targets)
	fields.Set(moveStart, formatTime(e.Start))
	fields.Set(moveEnd, formatTime(e.End))
	fields.Set(moveIsInstant, strconv.FormatBool(e.IsInstant))
	fields.Set(moveFrom, e.From)
	fields.Set(moveTo, e.To)
	fields.Set(movePublisher, e.Publisher)
	entity := domain.LogicalEntity{ID: e.URI, Type: e.Type, Fields: fields}
	if len(e.TargetPositions) > 0 {
		p, err := toPayload(movePayload{TargetPositions: e.TargetPositions})
		if err != nil {
			return domain.LogicalEntity{}, err
		}
		entity.Payload = p
	}
	return entity, nil
}

// Join rebuilds the move, parsing its datetime fields.
func (MoveMapper) Join(entity domain.LogicalEntity) (domain.MoveEvent, error) {
	f := entity.Fields
	e := domain.MoveEvent{
		URI:         entity.ID,
		Type:        entity.Type,
		Description: f.Get(moveDescription),
		Targets:     append([]string(nil), f[moveTargets]...),
		IsInstant:   f.Get(moveIsInstant) == "true",
		From:        f.Get(moveFrom),
		To:          f.Get(moveTo),
		Publisher:   f.Get(movePublisher),
	}
	var err error
	if e.Start, err = parseTime(moveStart, f.Get(moveStart)); err != nil {
		return domain.MoveEvent{}, err
	}
	if e.End, err = parseTime(moveEnd, f.Get(moveEnd)); err != nil {
		return domain.MoveEvent{}, err
	}
	if entity.HasPayload() {
		var p movePayload
		if err := fromPayload(entity.Payload, &p); err != nil {
			return domain.MoveEvent{}, err
		}
		e.TargetPositions = p.TargetPositions
	}
	return e, nil
}

// Query filters on graph fields. Within becomes a document geometry filter.
func (MoveMapper) Query(f domain.MoveFilter) (domain.GraphQuery, *domain.DocumentFilter, error) {
	q := domain.GraphQuery{OrderBy: f.OrderBy}
	if len(f.Targets) > 0 {
		q = q.Where(moveTargets, domain.OpIn, f.Targets...)
	}
	if f.From != "" {
		q = q.Where(moveFrom, domain.OpEq, f.From)
	}
	if f.To != "" {
		q = q.Where(moveTo, domain.OpEq, f.To)
	}
	if f.Description != "" {
		q = q.Where(moveDescription, domain.OpContains, f.Description)
	}
	if f.StartAfter != nil {
		q = q.Where(moveStart, domain.OpGte, formatTime(f.StartAfter))
	}
	if f.EndBefore != nil {
		q = q.Where(moveEnd, domain.OpLte, formatTime(f.EndBefore))
	}
	if len(q.OrderBy) == 0 {
		q.OrderBy = []domain.OrderBy{{Field: moveEnd, Desc: true}}
	}
	q.Offset, q.Limit = pageWindow(f.Page, f.PageSize)
	if f.Within == nil {
		return q, nil, nil
	}
	return q, &domain.DocumentFilter{Within: &domain.GeoWithin{Path: MovePositionPath, Box: *f.Within}}, nil
}

// Facility fields and document paths.
const (
	facilityName          = "name"
	facilityOrganizations = "organizations"
	facilitySites         = "sites"

	// FacilityGeometryPath addresses the facility geometry inside its payload.
	FacilityGeometryPath = "geometry"
)

type facilityPayload struct {
	Geometry *domain.Geometry `json:"geometry,omitempty"`
	Address  *domain.Address  `json:"address,omitempty"`
}

// FacilityMapper maps facilities. Geometry and address form the payload.
type FacilityMapper struct{}

// Kind returns "facility".
func (FacilityMapper) Kind() string { return "facility" }

// Type returns the oeso:Facility class.
func (FacilityMapper) Type() string { return domain.ClassFacility }

// Collection returns the facility document collection.
func (FacilityMapper) Collection() string { return "facility" }

// Split maps graph fields and puts geometry and address in the payload.
func (FacilityMapper) Split(f domain.Facility) (domain.LogicalEntity, error) {
	fields := domain.Fields{}
	fields.Set(facilityName, f.Name)
	fields.SetAll(facilityOrganizations, f.Organizations)
	fields.SetAll(facilitySites, f.Sites)
	entity := domain.LogicalEntity{ID: f.URI, Type: f.Type, Fields: fields}
	if f.Geometry != nil || f.Address != nil {
		p, err := toPayload(facilityPayload{Geometry: f.Geometry, Address: f.Address})
		if err != nil {
			return domain.LogicalEntity{}, err
		}
		entity.Payload = p
	}
	return entity, nil
}

// Join rebuilds the facility.
func (FacilityMapper) Join(entity domain.LogicalEntity) (domain.Facility, error) {
	f := domain.Facility{
		URI:           entity.ID,
		Type:          entity.Type,
		Name:          entity.Fields.Get(facilityName),
		Organizations: append([]string(nil), entity.Fields[facilityOrganizations]...),
		Sites:         append([]string(nil), entity.Fields[facilitySites]...),
	}
	if entity.HasPayload() {
		var p facilityPayload
		if err := fromPayload(entity.Payload, &p); err != nil {
			return domain.Facility{}, err
		}
		f.Geometry, f.Address = p.Geometry, p.Address
	}
	return f, nil
}

// Query filters on name and organizations in the graph and on geometry in
// the documents.
func (FacilityMapper) Query(f domain.FacilityFilter) (domain.GraphQuery, *domain.DocumentFilter, error) {
	q := domain.GraphQuery{OrderBy: f.OrderBy}
	if f.Name != "" {
		q = q.Where(facilityName, domain.OpContains, f.Name)
	}
	if len(f.Organizations) > 0 {
		q = q.Where(facilityOrganizations, domain.OpIn, f.Organizations...)
	}
	if len(q.OrderBy) == 0 {
		q.OrderBy = []domain.OrderBy{{Field: facilityName}}
	}
	q.Offset, q.Limit = pageWindow(f.Page, f.PageSize)
	if f.Within == nil {
		return q, nil, nil
	}
	return q, &domain.DocumentFilter{Within: &domain.GeoWithin{Path: FacilityGeometryPath, Box: *f.Within}}, nil
}
