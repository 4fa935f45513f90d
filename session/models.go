package session

import "time"

// Status is the lifecycle state of a discussion session.
type Status string

const (
	StatusCreated   Status = "created"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusSigned    Status = "signed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// AttendeeType classifies a person present at a session.
type AttendeeType string

const (
	AttendeeWitness    AttendeeType = "witness"
	AttendeeExpert     AttendeeType = "expert"
	AttendeeCourtClerk AttendeeType = "court_clerk"
	AttendeeSecretary  AttendeeType = "secretary"
	AttendeeOther      AttendeeType = "other"
)

// Session mirrors the discussion_sessions table. Protocol holds the
// materialized latest protocol text; ProtocolSnapshot is frozen at end or
// sign time and never overwritten afterwards.
type Session struct {
	ID               string
	HearingID        string
	CaseID           string
	Title            string
	Status           Status
	Protocol         string
	ProtocolSnapshot *string
	StartedAt        *time.Time
	EndedAt          *time.Time
	SignedAt         *time.Time
	SignedBy         *string
	Attendees        []Attendee
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Attendee is owned by a session and mutable only in its early states.
type Attendee struct {
	ID        string
	SessionID string
	Type      AttendeeType
	Name      string
	PersonID  *string
	CreatedAt time.Time
}

// CreateParams contains the fields required to open a session for a hearing.
type CreateParams struct {
	HearingID string
	Title     string
}

// AttendeeParams contains the fields for adding an attendee to a session.
type AttendeeParams struct {
	Type     AttendeeType
	Name     string
	PersonID *string
}

func validAttendeeType(t AttendeeType) bool {
	switch t {
	case AttendeeWitness, AttendeeExpert, AttendeeCourtClerk, AttendeeSecretary, AttendeeOther:
		return true
	default:
		return false
	}
}
