package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCoordinationErrorUnwrapsCause(t *testing.T) {
	cause := DuplicateIdentifierError{ID: "http://ex/id/move.1"}
	err := fmt.Errorf("create move: %w", &CoordinationError{Phase: PhaseGraph, Op: string(ActionCreate), Cause: cause})
	if !IsDuplicate(err) {
		t.Fatalf("expected duplicate to be discoverable through coordination error")
	}
	phase, ok := CoordinationPhase(err)
	if !ok || phase != PhaseGraph {
		t.Fatalf("unexpected phase %q ok=%v", phase, ok)
	}
	if !strings.Contains(err.Error(), "create failed in graph phase") {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if _, ok := CoordinationPhase(errors.New("plain")); ok {
		t.Fatalf("plain errors carry no phase")
	}
}

func TestErrorMessages(t *testing.T) {
	cases := map[string]error{
		"invalid identifier: empty":            InvalidIdentifierError{Reason: "empty"},
		`invalid identifier "a b": whitespace`: InvalidIdentifierError{ID: "a b", Reason: "whitespace"},
		"x not found":                          NotFoundError{ID: "x"},
		"Move x not found":                     NotFoundError{Type: "Move", ID: "x"},
		"invalid Move: a; b":                   ValidationError{Type: "Move", Problems: []string{"a", "b"}},
		"rollback of document transaction failed: boom": RollbackFailureWarning{Phase: PhaseDocument, Cause: errors.New("boom")},
	}
	for want, err := range cases {
		if err.Error() != want {
			t.Errorf("got %q want %q", err.Error(), want)
		}
	}
	if !IsNotFound(fmt.Errorf("wrap: %w", NotFoundError{ID: "x"})) {
		t.Fatalf("IsNotFound should see wrapped errors")
	}
}
