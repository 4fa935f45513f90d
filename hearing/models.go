package hearing

import "time"

// Type classifies a scheduled hearing.
type Type string

const (
	TypeMain        Type = "main_hearing"
	TypePreliminary Type = "preliminary"
	TypeEvidentiary Type = "evidentiary"
	TypeOther       Type = "other"
)

// Hearing mirrors the hearings table. Created once by an arbitrator and
// read-mostly afterward; Status tracks the linked discussion session.
type Hearing struct {
	ID            string
	CaseID        string
	ScheduledDate time.Time
	Type          Type
	Status        string
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateParams contains the fields required to schedule a hearing.
type CreateParams struct {
	CaseID        string
	ScheduledDate time.Time
	Type          Type
}

func validType(t Type) bool {
	switch t {
	case TypeMain, TypePreliminary, TypeEvidentiary, TypeOther:
		return true
	default:
		return false
	}
}
