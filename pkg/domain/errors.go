package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Phase names the store side on which a coordinated operation failed.
type Phase string

// Coordination phases.
const (
	PhaseGraph    Phase = "graph"
	PhaseDocument Phase = "document"
)

// InvalidIdentifierError reports an empty or malformed supplied identifier.
type InvalidIdentifierError struct {
	ID     string
	Reason string
}

func (e InvalidIdentifierError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("invalid identifier: %s", e.Reason)
	}
	return fmt.Sprintf("invalid identifier %q: %s", e.ID, e.Reason)
}

// DuplicateIdentifierError reports an identifier already present in the graph store.
type DuplicateIdentifierError struct {
	ID string
}

func (e DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("identifier %q already exists", e.ID)
}

// DocumentConflictError reports a document key already held by the document
// of another graph record.
type DocumentConflictError struct {
	Key   string
	Owner string
	ID    string
}

func (e DocumentConflictError) Error() string {
	return fmt.Sprintf("document %q belongs to %q, not %q", e.Key, e.Owner, e.ID)
}

// NotFoundError reports a missing graph record.
type NotFoundError struct {
	Type string
	ID   string
}

func (e NotFoundError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("%s not found", e.ID)
	}
	return fmt.Sprintf("%s %s not found", e.Type, e.ID)
}

// ValidationError reports graph fields that violate the ontology class mapping.
type ValidationError struct {
	Type     string
	Problems []string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Type, strings.Join(e.Problems, "; "))
}

// CoordinationError wraps a store failure that happened inside a coordinated
// operation. Every transaction opened for the operation has been rolled back
// (best effort) by the time a caller sees it; nothing was persisted.
type CoordinationError struct {
	Phase Phase
	Op    string
	Cause error
}

func (e *CoordinationError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("coordinated operation failed in %s phase: %v", e.Phase, e.Cause)
	}
	return fmt.Sprintf("%s failed in %s phase: %v", e.Op, e.Phase, e.Cause)
}

func (e *CoordinationError) Unwrap() error { return e.Cause }

// RollbackFailureWarning describes a rollback that failed. It is logged, never
// returned: the error that triggered the rollback is what callers receive.
type RollbackFailureWarning struct {
	Phase Phase
	Cause error
}

func (w RollbackFailureWarning) Error() string {
	return fmt.Sprintf("rollback of %s transaction failed: %v", w.Phase, w.Cause)
}

func (w RollbackFailureWarning) Unwrap() error { return w.Cause }

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// IsDuplicate reports whether err is or wraps a DuplicateIdentifierError.
func IsDuplicate(err error) bool {
	var dup DuplicateIdentifierError
	return errors.As(err, &dup)
}

// CoordinationPhase returns the failing phase when err wraps a CoordinationError.
func CoordinationPhase(err error) (Phase, bool) {
	var ce *CoordinationError
	if errors.As(err, &ce) {
		return ce.Phase, true
	}
	return "", false
}
