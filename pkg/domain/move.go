package domain

import "time"

// Ontology namespaces used by the built-in aggregates.
const (
	NamespaceOEEV = "http://www.opensilex.org/vocabulary/oeev#"
	NamespaceOESO = "http://www.opensilex.org/vocabulary/oeso#"
	NamespaceRDFS = "http://www.w3.org/2000/01/rdf-schema#"
	NamespaceTime = "http://www.w3.org/2006/time#"
	NamespaceDC   = "http://purl.org/dc/terms/"
)

// ClassMove is the rdf:type of move events.
const ClassMove = NamespaceOEEV + "Move"

// GeoPoint is a GeoJSON point, coordinates in [lon, lat(, alt)] order.
type GeoPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// NewGeoPoint builds a GeoJSON point.
func NewGeoPoint(lon, lat float64) *GeoPoint {
	return &GeoPoint{Type: "Point", Coordinates: []float64{lon, lat}}
}

// Position locates a target after a move. Any combination of a geographic
// point, custom x/y/z coordinates and free text may be given.
type Position struct {
	Point *GeoPoint `json:"point,omitempty"`
	X     string    `json:"x,omitempty"`
	Y     string    `json:"y,omitempty"`
	Z     string    `json:"z,omitempty"`
	Text  string    `json:"text,omitempty"`
}

// TargetPosition is the position of one moved target.
type TargetPosition struct {
	Target   string   `json:"target"`
	Position Position `json:"position"`
}

// MoveEvent records targets moving from one facility to another. Its
// relational fields live in the graph store; TargetPositions, when non-empty,
// live in the document store.
type MoveEvent struct {
	URI             string
	Type            string
	Description     string
	Targets         []string
	Start           *time.Time
	End             *time.Time
	IsInstant       bool
	From            string
	To              string
	Publisher       string
	TargetPositions []TargetPosition
}

// MoveFilter selects move events. Within targets document-only geometry.
type MoveFilter struct {
	Targets     []string
	From        string
	To          string
	Description string
	StartAfter  *time.Time
	EndBefore   *time.Time
	Within      *BoundingBox
	OrderBy     []OrderBy
	Page        int
	PageSize    int
}
