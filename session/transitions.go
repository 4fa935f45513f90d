package session

import (
	"fmt"
	"strings"
)

// allowedTransitions is the one-way table for Transition. Closure states
// (completed, cancelled) are deliberately absent: completed is reached only
// through the decision manager, cancelled only through Cancel.
var allowedTransitions = map[Status][]Status{
	StatusCreated: {StatusActive},
	StatusActive:  {StatusEnded},
	StatusEnded:   {StatusSigned},
	StatusSigned:  {},
}

// InvalidTransitionError reports a rejected status change together with the
// transitions the current state actually permits.
type InvalidTransitionError struct {
	From    Status
	To      Status
	Allowed []Status
}

func (e *InvalidTransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("session: invalid transition %s -> %s (%s is terminal)", e.From, e.To, e.From)
	}
	names := make([]string, 0, len(e.Allowed))
	for _, s := range e.Allowed {
		names = append(names, string(s))
	}
	return fmt.Sprintf("session: invalid transition %s -> %s (allowed: %s)", e.From, e.To, strings.Join(names, ", "))
}

// CanTransition validates a target against the allowed table. It returns an
// *InvalidTransitionError carrying the allowed set when the move is illegal.
func CanTransition(from, to Status) error {
	allowed, ok := allowedTransitions[from]
	if !ok {
		// completed/cancelled: nothing leaves a closure state.
		return &InvalidTransitionError{From: from, To: to, Allowed: nil}
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: from, To: to, Allowed: allowed}
}

// Terminal reports whether no transition may ever leave the given status.
func Terminal(s Status) bool {
	return len(allowedTransitions[s]) == 0
}

// rosterMutable reports whether attendees may still be added or removed.
func rosterMutable(s Status) bool {
	return s == StatusCreated || s == StatusActive
}
