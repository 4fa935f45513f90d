package protocol

import (
	"errors"
	"time"
)

var (
	// ErrLocked signals a protocol write outside the window the guard
	// allows: wrong calendar day, wrong session status, or an edit attempt
	// past the ended/signed states.
	ErrLocked = errors.New("protocol: locked")
	// ErrNoParticipants signals a write against a session with an empty roster.
	ErrNoParticipants = errors.New("protocol: session has no attendees")
	// ErrImmutable signals an attempt to alter a stored version. Versions
	// are write-once; corrections require a brand-new version.
	ErrImmutable = errors.New("protocol: stored versions are immutable")
	// ErrNoVersions signals that the session has no protocol versions yet.
	ErrNoVersions = errors.New("protocol: no versions")
)

// Version is one entry in the append-only protocol ledger. Content never
// changes after insert and UpdatedAt stays equal to CreatedAt forever; only
// the current-pointer flip and the signature stamp touch a stored row.
type Version struct {
	ID               string
	SessionID        string
	CaseID           string
	Content          string
	Version          int
	IsCurrentVersion bool
	SignedAt         *time.Time
	SignedBy         *string
	CreatedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
