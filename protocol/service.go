package protocol

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"caseflow/audit"
	"caseflow/auth"
	"caseflow/hearing"
	"caseflow/session"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Ledger defines the version-ledger data access the service needs.
type Ledger interface {
	NextVersion(ctx context.Context, tx pgx.Tx, sessionID string) (int, error)
	DemoteCurrent(ctx context.Context, tx pgx.Tx, sessionID string) error
	Insert(ctx context.Context, tx pgx.Tx, v Version) (Version, error)
	MaterializeProtocol(ctx context.Context, tx pgx.Tx, sessionID, content string) error
	Current(ctx context.Context, sessionID string) (Version, error)
	ListBySession(ctx context.Context, sessionID string) ([]Version, error)
}

// SessionStore is the slice of the session package the save path consumes.
// GetForUpdate locks the session row, which is what serializes the version
// number and the current-pointer flip.
type SessionStore interface {
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (session.Session, error)
	ListAttendeesTx(ctx context.Context, tx pgx.Tx, sessionID string) ([]session.Attendee, error)
}

// HearingSource supplies the hearing the guard's day check runs against.
type HearingSource interface {
	GetTx(ctx context.Context, tx pgx.Tx, id string) (hearing.Hearing, error)
}

// SaveResult is a stored version plus the advisory lint findings for it.
type SaveResult struct {
	Version  Version
	Findings []Finding
}

type Service struct {
	pool     TxBeginner
	ledger   Ledger
	sessions SessionStore
	hearings HearingSource
	guard    *Guard
	audit    audit.Recorder
	idGen    func() string
}

func NewService(pool TxBeginner, ledger Ledger, sessions SessionStore, hearings HearingSource, guard *Guard, recorder audit.Recorder) *Service {
	if guard == nil {
		guard = NewGuard(nil)
	}
	if recorder == nil {
		recorder = audit.Discard{}
	}
	return &Service{
		pool:     pool,
		ledger:   ledger,
		sessions: sessions,
		hearings: hearings,
		guard:    guard,
		audit:    recorder,
		idGen:    func() string { return uuid.NewString() },
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.guard.Now = now
	return s
}

// SaveVersion appends a new protocol version and makes it current, all in
// one transaction: lock the session, run the guard, demote the old current
// row, insert the new one, and mirror the content onto the session. The
// attendee banner is re-injected from the live roster on every save so a
// stale banner in the submitted text never wins.
func (s *Service) SaveVersion(ctx context.Context, sessionID string, actor auth.Actor, content string) (SaveResult, error) {
	if sessionID == "" {
		return SaveResult{}, fmt.Errorf("protocol: session id required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return SaveResult{}, fmt.Errorf("protocol: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	sess, err := s.sessions.GetForUpdate(ctx, tx, sessionID)
	if err != nil {
		return SaveResult{}, err
	}
	attendees, err := s.sessions.ListAttendeesTx(ctx, tx, sessionID)
	if err != nil {
		return SaveResult{}, err
	}
	sess.Attendees = attendees

	h, err := s.hearings.GetTx(ctx, tx, sess.HearingID)
	if err != nil {
		return SaveResult{}, err
	}
	if err := s.guard.CanEdit(&sess, &h); err != nil {
		return SaveResult{}, err
	}

	stamped := InjectHeader(content, attendees)

	next, err := s.ledger.NextVersion(ctx, tx, sessionID)
	if err != nil {
		return SaveResult{}, err
	}
	if err := s.ledger.DemoteCurrent(ctx, tx, sessionID); err != nil {
		return SaveResult{}, err
	}

	stored, err := s.ledger.Insert(ctx, tx, Version{
		ID:        s.idGen(),
		SessionID: sessionID,
		CaseID:    sess.CaseID,
		Content:   stamped,
		Version:   next,
		CreatedBy: actor.ID,
	})
	if err != nil {
		return SaveResult{}, err
	}

	if err := s.ledger.MaterializeProtocol(ctx, tx, sessionID, stamped); err != nil {
		return SaveResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return SaveResult{}, fmt.Errorf("protocol: commit save: %w", err)
	}

	s.audit.Record(ctx, actor.ID, "protocol.version_saved", "session", sessionID, map[string]any{
		"version_id": stored.ID,
		"version":    stored.Version,
	})
	return SaveResult{Version: stored, Findings: ValidateContent(content)}, nil
}

// AmendVersion always fails: stored versions are write-once, corrections go
// through SaveVersion as a new version.
func (s *Service) AmendVersion(ctx context.Context, versionID string, actor auth.Actor, content string) error {
	return fmt.Errorf("protocol: amend version %s: %w", versionID, ErrImmutable)
}

// CurrentVersion returns the session's current version.
func (s *Service) CurrentVersion(ctx context.Context, sessionID string) (Version, error) {
	if sessionID == "" {
		return Version{}, fmt.Errorf("protocol: session id required")
	}
	return s.ledger.Current(ctx, sessionID)
}

// ListVersions returns the session's full ledger, newest first.
func (s *Service) ListVersions(ctx context.Context, sessionID string) ([]Version, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("protocol: session id required")
	}
	return s.ledger.ListBySession(ctx, sessionID)
}

// EditableContent returns the current version's body without the attendee
// banner, which is what an editor loads.
func (s *Service) EditableContent(ctx context.Context, sessionID string) (string, error) {
	v, err := s.CurrentVersion(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return StripHeader(v.Content), nil
}
