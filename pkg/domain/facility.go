package domain

// ClassFacility is the rdf:type of facilities.
const ClassFacility = NamespaceOESO + "Facility"

// Geometry is a GeoJSON geometry of any type.
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// Address is a postal address attached to a facility.
type Address struct {
	Street     string `json:"street,omitempty"`
	Locality   string `json:"locality,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Region     string `json:"region,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Facility is a physical installation hosting experiments. Geometry and
// Address are document-side; a facility without either has no document record.
type Facility struct {
	URI           string
	Type          string
	Name          string
	Organizations []string
	Sites         []string
	Geometry      *Geometry
	Address       *Address
}

// FacilityFilter selects facilities. Within targets document-only geometry.
type FacilityFilter struct {
	Name          string
	Organizations []string
	Within        *BoundingBox
	OrderBy       []OrderBy
	Page          int
	PageSize      int
}
