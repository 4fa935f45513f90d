package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"caseflow/audit"
	"caseflow/auth"
	"caseflow/cases"
)

// DefaultOpenDraftLimit caps simultaneous draft decisions per author.
const DefaultOpenDraftLimit = 4

// ErrInvalidStatusMove signals a backward or unknown status transition.
var ErrInvalidStatusMove = errors.New("decision: invalid status transition")

var statusRank = map[Status]int{
	StatusDraft:            0,
	StatusSentForSignature: 1,
	StatusSigned:           2,
}

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store defines the data access required by the service.
type Store interface {
	Insert(ctx context.Context, tx pgx.Tx, d Decision) (Decision, error)
	GetByID(ctx context.Context, id string) (Decision, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Decision, error)
	LockAuthor(ctx context.Context, tx pgx.Tx, userID string) error
	CountOpenDraftsTx(ctx context.Context, tx pgx.Tx, createdBy string) (int, error)
	CountOpenDrafts(ctx context.Context, createdBy string) (int, error)
	ApplyPatch(ctx context.Context, tx pgx.Tx, d Decision) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status Status, signedAt *time.Time, signedBy *string) error
	SetRevocationLinks(ctx context.Context, tx pgx.Tx, targetID, revokerID string) error
	SoftDelete(ctx context.Context, tx pgx.Tx, id, deletedBy string, at time.Time) error
	ListByCase(ctx context.Context, caseID string, filter ListFilter) ([]Decision, error)
}

// SessionCloser drives a linked session to its completed closure state when
// a final decision is signed.
type SessionCloser interface {
	Complete(ctx context.Context, tx pgx.Tx, sessionID string) error
}

// CaseCloser flips the parent case when a closesCase decision is signed.
type CaseCloser interface {
	SetStatus(ctx context.Context, tx pgx.Tx, caseID, status string) error
}

type Service struct {
	pool     TxBeginner
	repo     Store
	sessions SessionCloser
	cases    CaseCloser
	audit    audit.Recorder
	limit    int
	idGen    func() string
	now      func() time.Time
}

func NewService(pool TxBeginner, repo Store, sessions SessionCloser, caseRepo CaseCloser, recorder audit.Recorder, openDraftLimit int) *Service {
	if recorder == nil {
		recorder = audit.Discard{}
	}
	if openDraftLimit <= 0 {
		openDraftLimit = DefaultOpenDraftLimit
	}
	return &Service{
		pool:     pool,
		repo:     repo,
		sessions: sessions,
		cases:    caseRepo,
		audit:    recorder,
		limit:    openDraftLimit,
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

// Create opens a new draft decision. The author's user row is locked before
// the open-draft count, so two concurrent creates by the same author
// serialize at the lock and the second one counts the first one's committed
// insert. Type rules: a note must reference the request it answers, a final
// decision always closes its discussion.
func (s *Service) Create(ctx context.Context, actor auth.Actor, params CreateParams) (Decision, error) {
	if params.CaseID == "" {
		return Decision{}, fmt.Errorf("decision: case id required")
	}
	if params.Type == "" {
		params.Type = TypeNote
	}
	if !validType(params.Type) {
		return Decision{}, fmt.Errorf("decision: invalid type %q", params.Type)
	}
	if params.Type == TypeNote && params.RequestID == nil {
		return Decision{}, fmt.Errorf("decision: note decisions require a request id")
	}
	if params.Type == TypeFinal {
		params.ClosesDiscussion = true
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("decision: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.LockAuthor(ctx, tx, actor.ID); err != nil {
		return Decision{}, err
	}
	count, err := s.repo.CountOpenDraftsTx(ctx, tx, actor.ID)
	if err != nil {
		return Decision{}, err
	}
	if count >= s.limit {
		return Decision{}, &LimitExceededError{Count: count, Limit: s.limit}
	}

	created, err := s.repo.Insert(ctx, tx, Decision{
		ID:               s.idGen(),
		CaseID:           params.CaseID,
		Type:             params.Type,
		Status:           StatusDraft,
		Title:            params.Title,
		Content:          params.Content,
		DocumentID:       params.DocumentID,
		RequestID:        params.RequestID,
		SessionID:        params.SessionID,
		ClosesDiscussion: params.ClosesDiscussion,
		ClosesCase:       params.ClosesCase,
		CreatedBy:        actor.ID,
	})
	if err != nil {
		return Decision{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Decision{}, fmt.Errorf("decision: commit create: %w", err)
	}

	s.audit.Record(ctx, actor.ID, "decision.created", "decision", created.ID, map[string]any{
		"case_id": created.CaseID,
		"type":    string(created.Type),
	})
	return created, nil
}

func (s *Service) Get(ctx context.Context, id string) (Decision, error) {
	if id == "" {
		return Decision{}, fmt.Errorf("decision: id required")
	}
	return s.repo.GetByID(ctx, id)
}

// List returns a case's decisions. Soft-deleted records are excluded unless
// the filter opts in for audit purposes.
func (s *Service) List(ctx context.Context, caseID string, filter ListFilter) ([]Decision, error) {
	if caseID == "" {
		return nil, fmt.Errorf("decision: case id required")
	}
	return s.repo.ListByCase(ctx, caseID, filter)
}

// Update patches a decision's editable fields. Once signed, content and
// title can never change.
func (s *Service) Update(ctx context.Context, id string, actor auth.Actor, patch Patch) (Decision, error) {
	if id == "" {
		return Decision{}, fmt.Errorf("decision: id required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("decision: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := s.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		return Decision{}, err
	}
	if rec.IsDeleted {
		return Decision{}, ErrNotFound
	}
	if rec.Status == StatusSigned && (patch.Title != nil || patch.Content != nil) {
		return Decision{}, ErrImmutable
	}

	if patch.Title != nil {
		rec.Title = *patch.Title
	}
	if patch.Content != nil {
		rec.Content = *patch.Content
	}
	if patch.DocumentID != nil {
		rec.DocumentID = patch.DocumentID
	}
	if patch.ClosesDiscussion != nil {
		rec.ClosesDiscussion = *patch.ClosesDiscussion
	}
	if patch.ClosesCase != nil {
		rec.ClosesCase = *patch.ClosesCase
	}
	if rec.Type == TypeFinal {
		rec.ClosesDiscussion = true
	}

	if err := s.repo.ApplyPatch(ctx, tx, rec); err != nil {
		return Decision{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Decision{}, fmt.Errorf("decision: commit update: %w", err)
	}

	s.audit.Record(ctx, actor.ID, "decision.updated", "decision", rec.ID, nil)
	return rec, nil
}

// UpdateStatus advances a decision one step at a time through draft,
// sent_for_signature, signed. Backward moves and skips are rejected.
// Signing is privileged. Signing a final decision linked to a
// session drives that session to completed, and a closesCase decision
// closes the parent case, all inside the same transaction.
func (s *Service) UpdateStatus(ctx context.Context, id string, actor auth.Actor, next Status) (Decision, error) {
	if id == "" {
		return Decision{}, fmt.Errorf("decision: id required")
	}
	nextRank, ok := statusRank[next]
	if !ok {
		return Decision{}, fmt.Errorf("%w: unknown status %q", ErrInvalidStatusMove, next)
	}
	if next == StatusSigned && !auth.IsPrivileged(actor.Role) {
		return Decision{}, ErrForbidden
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("decision: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := s.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		return Decision{}, err
	}
	if rec.IsDeleted {
		return Decision{}, ErrNotFound
	}
	if statusRank[rec.Status]+1 != nextRank {
		return Decision{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusMove, rec.Status, next)
	}

	prev := rec.Status
	rec.Status = next
	var signedAt *time.Time
	var signedBy *string
	if next == StatusSigned {
		now := s.now()
		signedAt = &now
		by := actor.ID
		signedBy = &by
		rec.SignedAt = signedAt
		rec.SignedBy = signedBy
	}

	if err := s.repo.UpdateStatus(ctx, tx, rec.ID, next, signedAt, signedBy); err != nil {
		return Decision{}, err
	}

	if next == StatusSigned {
		if rec.Type == TypeFinal && rec.SessionID != nil {
			if err := s.sessions.Complete(ctx, tx, *rec.SessionID); err != nil {
				return Decision{}, err
			}
		}
		if rec.ClosesCase {
			if err := s.cases.SetStatus(ctx, tx, rec.CaseID, cases.StatusClosed); err != nil {
				return Decision{}, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Decision{}, fmt.Errorf("decision: commit status change: %w", err)
	}

	s.audit.Record(ctx, actor.ID, "decision.status_changed", "decision", rec.ID, map[string]any{
		"previous_status": string(prev),
		"next_status":     string(next),
	})
	return rec, nil
}

// Revoke neutralizes a signed decision by linking it to a revoker. The
// links form a one-to-one pair and are never overwritten. Rows are locked
// in a fixed id order so two concurrent revokes cannot deadlock.
func (s *Service) Revoke(ctx context.Context, targetID, revokerID string, actor auth.Actor) error {
	if targetID == "" || revokerID == "" {
		return fmt.Errorf("decision: target and revoker ids required")
	}
	if targetID == revokerID {
		return ErrSelfRevocation
	}
	if !auth.IsPrivileged(actor.Role) {
		return ErrForbidden
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("decision: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	first, second := targetID, revokerID
	if second < first {
		first, second = second, first
	}
	a, err := s.repo.GetForUpdate(ctx, tx, first)
	if err != nil {
		return err
	}
	b, err := s.repo.GetForUpdate(ctx, tx, second)
	if err != nil {
		return err
	}
	target, revoker := a, b
	if target.ID != targetID {
		target, revoker = b, a
	}

	if target.IsDeleted || revoker.IsDeleted {
		return ErrNotFound
	}
	if target.Status != StatusSigned {
		return ErrNotSigned
	}
	if target.RevokingDecisionID != nil {
		return ErrAlreadyRevoked
	}
	if revoker.RevokedByDecisionID != nil {
		return ErrRevokerTaken
	}

	if err := s.repo.SetRevocationLinks(ctx, tx, targetID, revokerID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("decision: commit revoke: %w", err)
	}

	s.audit.Record(ctx, actor.ID, "decision.revoked", "decision", targetID, map[string]any{
		"revoking_decision_id": revokerID,
	})
	return nil
}

// SoftDelete hides a decision from default listings. Signed decisions are
// permanently undeletable; revocation is their only correction path.
func (s *Service) SoftDelete(ctx context.Context, id string, actor auth.Actor) error {
	if id == "" {
		return fmt.Errorf("decision: id required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("decision: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.SoftDelete(ctx, tx, id, actor.ID, s.now()); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("decision: commit soft delete: %w", err)
	}

	s.audit.Record(ctx, actor.ID, "decision.soft_deleted", "decision", id, nil)
	return nil
}

// CheckOpenDraftLimit reports the author's standing against the draft
// ceiling, for caller-facing messaging. Advisory: admission control proper
// happens inside Create's transaction.
func (s *Service) CheckOpenDraftLimit(ctx context.Context, userID string) (LimitStatus, error) {
	if userID == "" {
		return LimitStatus{}, fmt.Errorf("decision: user id required")
	}
	count, err := s.repo.CountOpenDrafts(ctx, userID)
	if err != nil {
		return LimitStatus{}, err
	}
	return LimitStatus{Count: count, Limit: s.limit, CanCreate: count < s.limit}, nil
}
