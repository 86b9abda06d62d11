package core

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"opensilex/pkg/domain"
)

// DefaultNamespace prefixes generated URIs when no namespace is configured.
const DefaultNamespace = "http://opensilex.dev/id/"

// IDSource produces the disambiguating suffix of generated identifiers.
type IDSource interface {
	Next(kind string) string
}

// UUIDSource suffixes generated identifiers with a time-ordered UUIDv7.
type UUIDSource struct{}

// Next returns a fresh UUIDv7.
func (UUIDSource) Next(string) string {
	return uuid.Must(uuid.NewV7()).String()
}

// CounterSource yields a monotonically increasing counter, shared by all kinds.
type CounterSource struct {
	n atomic.Uint64
}

// Next returns the next counter value.
func (c *CounterSource) Next(string) string {
	return strconv.FormatUint(c.n.Add(1), 10)
}

// Identity resolves and normalizes entity identifiers.
type Identity struct {
	namespace  string
	source     IDSource
	graph      domain.GraphStore
	namespaces []string
}

// NewIdentity builds an Identity that generates URIs under namespace. Extra
// namespaces are stripped when computing short ids, longest first.
func NewIdentity(namespace string, source IDSource, graph domain.GraphStore, extra ...string) *Identity {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if source == nil {
		source = UUIDSource{}
	}
	seen := map[string]struct{}{}
	var namespaces []string
	for _, ns := range append([]string{namespace}, extra...) {
		if _, ok := seen[ns]; ok || ns == "" {
			continue
		}
		seen[ns] = struct{}{}
		namespaces = append(namespaces, ns)
	}
	sort.Slice(namespaces, func(i, j int) bool { return len(namespaces[i]) > len(namespaces[j]) })
	return &Identity{namespace: namespace, source: source, graph: graph, namespaces: namespaces}
}

// Namespace returns the namespace for generated identifiers.
func (i *Identity) Namespace() string { return i.namespace }

// Resolve returns candidateID unchanged when it is a valid URI, or generates
// <namespace><kind>.<suffix> when it is empty. A blank or malformed candidate
// is an InvalidIdentifierError. Uniqueness is not checked here.
func (i *Identity) Resolve(candidateID, kind string) (string, error) {
	if candidateID == "" {
		if kind == "" {
			return "", domain.InvalidIdentifierError{Reason: "entity kind required to generate an identifier"}
		}
		return i.namespace + kind + "." + i.source.Next(kind), nil
	}
	if err := ValidateURI(candidateID); err != nil {
		return "", err
	}
	return candidateID, nil
}

// ValidateURI checks id is an absolute URI without whitespace.
func ValidateURI(id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.InvalidIdentifierError{ID: id, Reason: "blank identifier"}
	}
	if strings.ContainsAny(id, " \t\r\n") {
		return domain.InvalidIdentifierError{ID: id, Reason: "whitespace in identifier"}
	}
	u, err := url.Parse(id)
	if err != nil {
		return domain.InvalidIdentifierError{ID: id, Reason: err.Error()}
	}
	if u.Scheme == "" {
		return domain.InvalidIdentifierError{ID: id, Reason: "missing URI scheme"}
	}
	if u.Opaque == "" && u.Host == "" && u.Path == "" {
		return domain.InvalidIdentifierError{ID: id, Reason: "empty URI body"}
	}
	return nil
}

// Short returns the document-side key of id: the part after a known
// namespace, the local part of a CURIE, or the last path or fragment segment.
func (i *Identity) Short(id string) string {
	for _, ns := range i.namespaces {
		if rest, ok := strings.CutPrefix(id, ns); ok && rest != "" {
			return rest
		}
	}
	scheme, rest, ok := strings.Cut(id, ":")
	if !ok || scheme == "" {
		return id
	}
	if !strings.HasPrefix(rest, "//") {
		if rest == "" {
			return id
		}
		return rest
	}
	trimmed := strings.TrimRight(id, "/#")
	if idx := strings.LastIndexAny(trimmed, "/#"); idx >= 0 && idx < len(trimmed)-1 {
		return trimmed[idx+1:]
	}
	return id
}

// ExistsAnywhere reports whether id exists in any named graph. The document
// store is not consulted: an entity may legitimately have no document.
func (i *Identity) ExistsAnywhere(ctx context.Context, id string) (bool, error) {
	return i.graph.ExistsAny(ctx, "", []string{id})
}
