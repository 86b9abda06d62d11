package domain

import (
	"fmt"
	"strings"
)

// BoundingBox is a longitude/latitude rectangle.
type BoundingBox struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// Contains reports whether the point lies inside the box (edges inclusive).
func (b BoundingBox) Contains(lon, lat float64) bool {
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// GeoWithin selects documents having a GeoJSON geometry at Path lying entirely
// inside Box. Path may traverse arrays; any element matching is enough.
type GeoWithin struct {
	Path string
	Box  BoundingBox
}

// DocumentFilter selects document records of one collection.
type DocumentFilter struct {
	// IDs, when non-nil, restricts results to these short ids.
	IDs []string
	// Equals maps payload dot-paths to expected values, compared by their
	// string form.
	Equals map[string]any
	Within *GeoWithin
}

// ByIDs builds a filter restricted to the given short ids.
func ByIDs(ids ...string) DocumentFilter {
	return DocumentFilter{IDs: append([]string{}, ids...)}
}

// DocumentOnly reports whether the filter targets payload content rather than
// plain identity.
func (f DocumentFilter) DocumentOnly() bool {
	return len(f.Equals) > 0 || f.Within != nil
}

// Matches reports whether doc satisfies every restriction of the filter.
func (f DocumentFilter) Matches(doc DocumentRecord) bool {
	if f.IDs != nil && !containsString(f.IDs, doc.ID) {
		return false
	}
	for path, want := range f.Equals {
		wantStr := fmt.Sprint(want)
		found := false
		for _, v := range lookupPath(map[string]any(doc.Payload), path) {
			if fmt.Sprint(v) == wantStr {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Within != nil {
		found := false
		for _, v := range lookupPath(map[string]any(doc.Payload), f.Within.Path) {
			if geometryWithin(v, f.Within.Box) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// lookupPath resolves a dot-separated path, fanning out over arrays.
func lookupPath(root any, path string) []any {
	current := []any{root}
	if path == "" {
		return current
	}
	for _, segment := range strings.Split(path, ".") {
		var next []any
		for _, node := range current {
			for _, item := range flatten(node) {
				m, ok := asMap(item)
				if !ok {
					continue
				}
				if v, ok := m[segment]; ok && v != nil {
					next = append(next, v)
				}
			}
		}
		current = next
	}
	var out []any
	for _, v := range current {
		out = append(out, flatten(v)...)
	}
	return out
}

func flatten(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []map[string]any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out
	default:
		return []any{v}
	}
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Payload:
		return t, true
	default:
		return nil, false
	}
}

// geometryWithin reports whether every coordinate of a GeoJSON geometry lies in
// box. A box is convex so this is exact for polygons and lines as well.
func geometryWithin(v any, box BoundingBox) bool {
	m, ok := asMap(v)
	if !ok {
		return false
	}
	points := collectPoints(m["coordinates"])
	if len(points) == 0 {
		return false
	}
	for _, p := range points {
		if !box.Contains(p[0], p[1]) {
			return false
		}
	}
	return true
}

func collectPoints(v any) [][2]float64 {
	switch t := v.(type) {
	case []float64:
		if len(t) >= 2 {
			return [][2]float64{{t[0], t[1]}}
		}
	case []any:
		if len(t) >= 2 {
			lon, okLon := toFloat(t[0])
			lat, okLat := toFloat(t[1])
			if okLon && okLat {
				return [][2]float64{{lon, lat}}
			}
		}
		var out [][2]float64
		for _, item := range t {
			out = append(out, collectPoints(item)...)
		}
		return out
	case [][]float64:
		var out [][2]float64
		for _, item := range t {
			out = append(out, collectPoints(item)...)
		}
		return out
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
