package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"caseflow/audit"
	"caseflow/auth"
	"caseflow/hearing"
)

var (
	// ErrForbidden signals the actor's role does not permit the operation.
	ErrForbidden = errors.New("session: forbidden")
	// ErrRosterLocked signals attendee mutation past the early states.
	ErrRosterLocked = errors.New("session: roster locked after session has ended")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store defines the data access required by the service.
type Store interface {
	Insert(ctx context.Context, tx pgx.Tx, s Session) (Session, error)
	GetByID(ctx context.Context, id string) (Session, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Session, error)
	ApplyTransition(ctx context.Context, tx pgx.Tx, s Session) error
	StampCurrentVersionSigned(ctx context.Context, tx pgx.Tx, sessionID, signedBy string, at time.Time) error
	InsertAttendee(ctx context.Context, tx pgx.Tx, a Attendee) (Attendee, error)
	DeleteAttendee(ctx context.Context, tx pgx.Tx, sessionID, attendeeID string) error
	ListAttendees(ctx context.Context, sessionID string) ([]Attendee, error)
}

// HearingRegistry is the slice of the hearing package the session machine
// consumes: lookups and the status mirror, both inside its transaction.
type HearingRegistry interface {
	GetTx(ctx context.Context, tx pgx.Tx, id string) (hearing.Hearing, error)
	MirrorStatus(ctx context.Context, tx pgx.Tx, id, status string) error
}

type Service struct {
	pool     TxBeginner
	repo     Store
	hearings HearingRegistry
	audit    audit.Recorder
	idGen    func() string
	now      func() time.Time
}

func NewService(pool TxBeginner, repo Store, hearings HearingRegistry, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.Discard{}
	}
	return &Service{
		pool:     pool,
		repo:     repo,
		hearings: hearings,
		audit:    recorder,
		idGen:    func() string { return uuid.NewString() },
		now:      time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create opens a discussion session for a hearing. The case id is copied
// from the hearing so every record downstream carries it.
func (s *Service) Create(ctx context.Context, actor auth.Actor, params CreateParams) (Session, error) {
	if params.HearingID == "" {
		return Session{}, fmt.Errorf("session: hearing id required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("session: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	h, err := s.hearings.GetTx(ctx, tx, params.HearingID)
	if err != nil {
		return Session{}, err
	}

	created, err := s.repo.Insert(ctx, tx, Session{
		ID:        s.idGen(),
		HearingID: h.ID,
		CaseID:    h.CaseID,
		Title:     params.Title,
		Status:    StatusCreated,
	})
	if err != nil {
		return Session{}, err
	}

	if err := s.hearings.MirrorStatus(ctx, tx, h.ID, string(StatusCreated)); err != nil {
		return Session{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Session{}, fmt.Errorf("session: commit create: %w", err)
	}

	s.audit.Record(ctx, actor.ID, "session.created", "session", created.ID, map[string]any{
		"hearing_id": created.HearingID,
		"case_id":    created.CaseID,
	})
	return created, nil
}

// Get returns a session with its attendee roster.
func (s *Service) Get(ctx context.Context, sessionID string) (Session, error) {
	if sessionID == "" {
		return Session{}, fmt.Errorf("session: id required")
	}
	rec, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	attendees, err := s.repo.ListAttendees(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	rec.Attendees = attendees
	return rec, nil
}

// Start activates a created session.
func (s *Service) Start(ctx context.Context, sessionID string, actor auth.Actor) (Session, error) {
	return s.transition(ctx, sessionID, StatusActive, actor, func(rec *Session, now time.Time) {
		rec.StartedAt = &now
	})
}

// End closes the live proceeding. The protocol snapshot is frozen from the
// materialized protocol text if any exists; it is never overwritten later.
func (s *Service) End(ctx context.Context, sessionID string, actor auth.Actor) (Session, error) {
	return s.transition(ctx, sessionID, StatusEnded, actor, func(rec *Session, now time.Time) {
		rec.EndedAt = &now
		if rec.ProtocolSnapshot == nil && rec.Protocol != "" {
			snapshot := rec.Protocol
			rec.ProtocolSnapshot = &snapshot
		}
	})
}

// Sign finalizes an ended session. Privileged roles only. Guarantees the
// snapshot is populated, backfilling from the protocol if the end step left
// it empty, and stamps the current protocol version as signed.
func (s *Service) Sign(ctx context.Context, sessionID string, actor auth.Actor) (Session, error) {
	if !auth.IsPrivileged(actor.Role) {
		return Session{}, ErrForbidden
	}
	return s.transition(ctx, sessionID, StatusSigned, actor, func(rec *Session, now time.Time) {
		rec.SignedAt = &now
		signedBy := actor.ID
		rec.SignedBy = &signedBy
		if rec.ProtocolSnapshot == nil && rec.Protocol != "" {
			snapshot := rec.Protocol
			rec.ProtocolSnapshot = &snapshot
		}
	})
}

// Cancel abandons a session that never ran to completion. Privileged roles
// only; allowed from the early states, before any protocol is final.
func (s *Service) Cancel(ctx context.Context, sessionID string, actor auth.Actor) (Session, error) {
	if !auth.IsPrivileged(actor.Role) {
		return Session{}, ErrForbidden
	}
	if sessionID == "" {
		return Session{}, fmt.Errorf("session: id required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("session: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := s.repo.GetForUpdate(ctx, tx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if rec.Status != StatusCreated && rec.Status != StatusActive {
		return Session{}, &InvalidTransitionError{From: rec.Status, To: StatusCancelled, Allowed: allowedTransitions[rec.Status]}
	}

	prev := rec.Status
	rec.Status = StatusCancelled
	if err := s.repo.ApplyTransition(ctx, tx, rec); err != nil {
		return Session{}, err
	}
	if err := s.hearings.MirrorStatus(ctx, tx, rec.HearingID, string(StatusCancelled)); err != nil {
		return Session{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Session{}, fmt.Errorf("session: commit cancel: %w", err)
	}

	s.audit.Record(ctx, actor.ID, "session.cancelled", "session", rec.ID, map[string]any{
		"previous_status": string(prev),
	})
	return rec, nil
}

// transition runs one validated status change as a single atomic unit: row
// lock, table check, side effects, hearing mirror, commit.
func (s *Service) transition(ctx context.Context, sessionID string, target Status, actor auth.Actor, sideEffects func(*Session, time.Time)) (Session, error) {
	if sessionID == "" {
		return Session{}, fmt.Errorf("session: id required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("session: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := s.repo.GetForUpdate(ctx, tx, sessionID)
	if err != nil {
		return Session{}, err
	}

	if err := CanTransition(rec.Status, target); err != nil {
		return Session{}, err
	}

	prev := rec.Status
	now := s.now()
	rec.Status = target
	if sideEffects != nil {
		sideEffects(&rec, now)
	}

	if err := s.repo.ApplyTransition(ctx, tx, rec); err != nil {
		return Session{}, err
	}
	if err := s.hearings.MirrorStatus(ctx, tx, rec.HearingID, string(target)); err != nil {
		return Session{}, err
	}
	if target == StatusSigned {
		if err := s.repo.StampCurrentVersionSigned(ctx, tx, rec.ID, actor.ID, now); err != nil {
			return Session{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Session{}, fmt.Errorf("session: commit transition: %w", err)
	}

	s.audit.Record(ctx, actor.ID, "session.status_changed", "session", rec.ID, map[string]any{
		"previous_status": string(prev),
		"next_status":     string(target),
	})
	return rec, nil
}

// AddAttendee appends a person to the roster. Legal only while the session
// is still in created or active state.
func (s *Service) AddAttendee(ctx context.Context, sessionID string, actor auth.Actor, params AttendeeParams) (Attendee, error) {
	if sessionID == "" {
		return Attendee{}, fmt.Errorf("session: id required")
	}
	if params.Name == "" {
		return Attendee{}, fmt.Errorf("session: attendee name required")
	}
	if params.Type == "" {
		params.Type = AttendeeOther
	}
	if !validAttendeeType(params.Type) {
		return Attendee{}, fmt.Errorf("session: invalid attendee type %q", params.Type)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Attendee{}, fmt.Errorf("session: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := s.repo.GetForUpdate(ctx, tx, sessionID)
	if err != nil {
		return Attendee{}, err
	}
	if !rosterMutable(rec.Status) {
		return Attendee{}, ErrRosterLocked
	}

	added, err := s.repo.InsertAttendee(ctx, tx, Attendee{
		ID:        s.idGen(),
		SessionID: sessionID,
		Type:      params.Type,
		Name:      params.Name,
		PersonID:  params.PersonID,
	})
	if err != nil {
		return Attendee{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Attendee{}, fmt.Errorf("session: commit add attendee: %w", err)
	}

	s.audit.Record(ctx, actor.ID, "session.attendee_added", "session", sessionID, map[string]any{
		"attendee_id": added.ID,
		"type":        string(added.Type),
	})
	return added, nil
}

// RemoveAttendee removes a person from the roster under the same early-state
// gate as AddAttendee.
func (s *Service) RemoveAttendee(ctx context.Context, sessionID, attendeeID string, actor auth.Actor) error {
	if sessionID == "" || attendeeID == "" {
		return fmt.Errorf("session: session id and attendee id required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("session: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := s.repo.GetForUpdate(ctx, tx, sessionID)
	if err != nil {
		return err
	}
	if !rosterMutable(rec.Status) {
		return ErrRosterLocked
	}

	if err := s.repo.DeleteAttendee(ctx, tx, sessionID, attendeeID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("session: commit remove attendee: %w", err)
	}

	s.audit.Record(ctx, actor.ID, "session.attendee_removed", "session", sessionID, map[string]any{
		"attendee_id": attendeeID,
	})
	return nil
}
