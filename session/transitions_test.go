package session

import (
	"errors"
	"strings"
	"testing"
)

func TestCanTransition_AllowedTable(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusCreated, StatusActive},
		{StatusActive, StatusEnded},
		{StatusEnded, StatusSigned},
	}
	for _, tc := range allowed {
		if err := CanTransition(tc.from, tc.to); err != nil {
			t.Errorf("%s -> %s: expected allowed, got %v", tc.from, tc.to, err)
		}
	}

	rejected := []struct{ from, to Status }{
		{StatusCreated, StatusEnded},
		{StatusCreated, StatusSigned},
		{StatusActive, StatusCreated},
		{StatusActive, StatusSigned},
		{StatusEnded, StatusActive},
		{StatusEnded, StatusCreated},
		{StatusSigned, StatusActive},
		{StatusSigned, StatusEnded},
		{StatusCompleted, StatusActive},
		{StatusCancelled, StatusActive},
	}
	for _, tc := range rejected {
		err := CanTransition(tc.from, tc.to)
		if err == nil {
			t.Errorf("%s -> %s: expected rejection", tc.from, tc.to)
			continue
		}
		var invalid *InvalidTransitionError
		if !errors.As(err, &invalid) {
			t.Errorf("%s -> %s: expected InvalidTransitionError, got %T", tc.from, tc.to, err)
			continue
		}
		if invalid.From != tc.from || invalid.To != tc.to {
			t.Errorf("error payload mismatch: got %s -> %s", invalid.From, invalid.To)
		}
	}
}

func TestInvalidTransitionError_CarriesAllowedSet(t *testing.T) {
	err := CanTransition(StatusActive, StatusSigned)
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if len(invalid.Allowed) != 1 || invalid.Allowed[0] != StatusEnded {
		t.Fatalf("expected allowed set [ended], got %v", invalid.Allowed)
	}
	if !strings.Contains(err.Error(), "allowed: ended") {
		t.Fatalf("expected message to list allowed set, got %q", err.Error())
	}
}

func TestInvalidTransitionError_TerminalMessage(t *testing.T) {
	err := CanTransition(StatusSigned, StatusActive)
	if err == nil {
		t.Fatal("expected rejection from terminal state")
	}
	if !strings.Contains(err.Error(), "terminal") {
		t.Fatalf("expected terminal note in message, got %q", err.Error())
	}
}

func TestTerminal(t *testing.T) {
	if Terminal(StatusCreated) || Terminal(StatusActive) || Terminal(StatusEnded) {
		t.Fatal("early states must not be terminal")
	}
	if !Terminal(StatusSigned) {
		t.Fatal("signed must be terminal")
	}
}

func TestRosterMutable(t *testing.T) {
	if !rosterMutable(StatusCreated) || !rosterMutable(StatusActive) {
		t.Fatal("roster must be mutable in created and active")
	}
	for _, s := range []Status{StatusEnded, StatusSigned, StatusCompleted, StatusCancelled} {
		if rosterMutable(s) {
			t.Fatalf("roster must be locked in %s", s)
		}
	}
}
