package decision

import (
	"errors"
	"fmt"
	"time"
)

type Type string

const (
	TypeNote       Type = "note"
	TypeFinal      Type = "final"
	TypeDiscussion Type = "discussion"
)

type Status string

const (
	StatusDraft            Status = "draft"
	StatusSentForSignature Status = "sent_for_signature"
	StatusSigned           Status = "signed"
)

var (
	// ErrNotFound signals the requested decision does not exist or is
	// soft-deleted.
	ErrNotFound = errors.New("decision: not found")
	// ErrForbidden signals the actor's role does not permit the operation.
	ErrForbidden = errors.New("decision: forbidden")
	// ErrImmutable signals a content edit against a signed decision.
	ErrImmutable = errors.New("decision: signed decisions are immutable")
	// ErrNotSigned signals a revocation where the target is not yet signed.
	ErrNotSigned = errors.New("decision: only signed decisions can be revoked")
	// ErrAlreadyRevoked signals the target already has a revoker.
	ErrAlreadyRevoked = errors.New("decision: already revoked")
	// ErrRevokerTaken signals the revoker already revokes another decision.
	ErrRevokerTaken = errors.New("decision: revoking decision already used")
	// ErrSelfRevocation signals a decision revoking itself.
	ErrSelfRevocation = errors.New("decision: a decision cannot revoke itself")
	// ErrAlreadyDeleted signals a soft delete against a deleted decision.
	ErrAlreadyDeleted = errors.New("decision: already deleted")
)

// LimitExceededError reports that the author already holds the maximum
// number of open drafts.
type LimitExceededError struct {
	Count int
	Limit int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("decision: open draft limit reached (%d of %d)", e.Count, e.Limit)
}

type Decision struct {
	ID                  string
	CaseID              string
	Type                Type
	Status              Status
	Title               string
	Content             string
	DocumentID          *string
	RequestID           *string
	SessionID           *string
	ClosesDiscussion    bool
	ClosesCase          bool
	IsDeleted           bool
	DeletedAt           *time.Time
	DeletedBy           *string
	RevokingDecisionID  *string
	RevokedByDecisionID *string
	SignedAt            *time.Time
	SignedBy            *string
	CreatedBy           string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// CreateParams carries what a caller may choose at creation time.
type CreateParams struct {
	CaseID           string
	Type             Type
	Title            string
	Content          string
	DocumentID       *string
	RequestID        *string
	SessionID        *string
	ClosesDiscussion bool
	ClosesCase       bool
}

// Patch carries the fields an update may touch. Nil means leave unchanged.
type Patch struct {
	Title            *string
	Content          *string
	DocumentID       *string
	ClosesDiscussion *bool
	ClosesCase       *bool
}

// LimitStatus reports an author's standing against the open-draft limit.
type LimitStatus struct {
	Count     int  `json:"count"`
	Limit     int  `json:"limit"`
	CanCreate bool `json:"can_create"`
}

// ListFilter narrows a case's decision list.
type ListFilter struct {
	Status         Status
	Type           Type
	IncludeDeleted bool
}

func validType(t Type) bool {
	switch t {
	case TypeNote, TypeFinal, TypeDiscussion:
		return true
	}
	return false
}
