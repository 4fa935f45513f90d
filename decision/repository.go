package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const decisionColumns = `id, case_id, type, status, title, content,
	document_id::text, request_id::text, session_id::text,
	closes_discussion, closes_case,
	is_deleted, deleted_at, deleted_by::text,
	revoking_decision_id::text, revoked_by_decision_id::text,
	signed_at, signed_by::text, created_by::text, created_at, updated_at`

// rowQuerier is the common surface of pgxpool.Pool and pgx.Tx the
// open-draft count runs against, so the limiter can answer from either side
// of a transaction boundary.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides data access for decisions.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, d Decision) (Decision, error) {
	const insertSQL = `
		INSERT INTO decisions (id, case_id, type, status, title, content,
			document_id, request_id, session_id, closes_discussion, closes_case, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7::uuid, $8::uuid, $9::uuid, $10, $11, $12::uuid)
		RETURNING ` + decisionColumns

	rec, err := scanDecision(tx.QueryRow(ctx, insertSQL,
		d.ID, d.CaseID, d.Type, d.Status, d.Title, d.Content,
		d.DocumentID, d.RequestID, d.SessionID, d.ClosesDiscussion, d.ClosesCase, d.CreatedBy))
	if err != nil {
		return Decision{}, fmt.Errorf("decision: insert: %w", err)
	}
	return rec, nil
}

// GetByID returns a live decision; soft-deleted rows read as not found.
func (r *Repository) GetByID(ctx context.Context, id string) (Decision, error) {
	const selectSQL = `SELECT ` + decisionColumns + ` FROM decisions WHERE id = $1 AND NOT is_deleted`

	rec, err := scanDecision(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Decision{}, ErrNotFound
		}
		return Decision{}, fmt.Errorf("decision: get by id: %w", err)
	}
	return rec, nil
}

// GetForUpdate locks the decision row for the rest of the transaction.
// Soft-deleted rows are still visible here so delete paths can report the
// precise failure.
func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Decision, error) {
	const selectSQL = `SELECT ` + decisionColumns + ` FROM decisions WHERE id = $1 FOR UPDATE`

	rec, err := scanDecision(tx.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Decision{}, ErrNotFound
		}
		return Decision{}, fmt.Errorf("decision: get for update: %w", err)
	}
	return rec, nil
}

// LockAuthor takes a row lock on the author's user record for the rest of
// the transaction. Concurrent creates by the same author queue here, so the
// open-draft count that follows always sees its peers' committed inserts.
func (r *Repository) LockAuthor(ctx context.Context, tx pgx.Tx, userID string) error {
	var id string
	err := tx.QueryRow(ctx, `SELECT id::text FROM users WHERE id = $1::uuid FOR UPDATE`, userID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("decision: lock author: unknown user %s", userID)
		}
		return fmt.Errorf("decision: lock author: %w", err)
	}
	return nil
}

// CountOpenDrafts counts the author's live drafts from the pool, for the
// advisory limit check.
func (r *Repository) CountOpenDrafts(ctx context.Context, createdBy string) (int, error) {
	return countOpenDrafts(ctx, r.pool, createdBy)
}

// CountOpenDraftsTx counts inside the caller's transaction so the create
// path commits under the same count it checked.
func (r *Repository) CountOpenDraftsTx(ctx context.Context, tx pgx.Tx, createdBy string) (int, error) {
	return countOpenDrafts(ctx, tx, createdBy)
}

func countOpenDrafts(ctx context.Context, q rowQuerier, createdBy string) (int, error) {
	var n int
	err := q.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM decisions
		WHERE created_by = $1::uuid AND status = 'draft' AND NOT is_deleted
	`, createdBy).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("decision: count open drafts: %w", err)
	}
	return n, nil
}

// ApplyPatch persists a validated field update.
func (r *Repository) ApplyPatch(ctx context.Context, tx pgx.Tx, d Decision) error {
	tag, err := tx.Exec(ctx, `
		UPDATE decisions
		SET title = $2, content = $3, document_id = $4::uuid,
		    closes_discussion = $5, closes_case = $6, updated_at = now()
		WHERE id = $1 AND NOT is_deleted
	`, d.ID, d.Title, d.Content, d.DocumentID, d.ClosesDiscussion, d.ClosesCase)
	if err != nil {
		return fmt.Errorf("decision: apply patch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus persists a status move with its signature side effects.
func (r *Repository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status Status, signedAt *time.Time, signedBy *string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE decisions
		SET status = $2,
		    signed_at = COALESCE(signed_at, $3),
		    signed_by = COALESCE(signed_by, $4::uuid),
		    updated_at = now()
		WHERE id = $1 AND NOT is_deleted
	`, id, status, signedAt, signedBy)
	if err != nil {
		return fmt.Errorf("decision: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRevocationLinks records the reciprocal pair: the target stores which
// decision revokes it, the revoker stores which decision it revoked. Both
// rows must already be locked by the caller. Conditional on NULL so an
// existing link on either side is never overwritten.
func (r *Repository) SetRevocationLinks(ctx context.Context, tx pgx.Tx, targetID, revokerID string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE decisions
		SET revoking_decision_id = $2::uuid, updated_at = now()
		WHERE id = $1 AND revoking_decision_id IS NULL
	`, targetID, revokerID)
	if err != nil {
		return fmt.Errorf("decision: link target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyRevoked
	}

	tag, err = tx.Exec(ctx, `
		UPDATE decisions
		SET revoked_by_decision_id = $2::uuid, updated_at = now()
		WHERE id = $1 AND revoked_by_decision_id IS NULL
	`, revokerID, targetID)
	if err != nil {
		return fmt.Errorf("decision: link revoker: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRevokerTaken
	}
	return nil
}

// SoftDelete marks a decision deleted. Conditional update so the no-rows
// cases can be told apart: a signed decision, an already-deleted one, and a
// missing id each answer differently.
func (r *Repository) SoftDelete(ctx context.Context, tx pgx.Tx, id, deletedBy string, at time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE decisions
		SET is_deleted = true, deleted_at = $2, deleted_by = $3::uuid, updated_at = now()
		WHERE id = $1 AND NOT is_deleted AND status <> 'signed'
	`, id, at, deletedBy)
	if err != nil {
		return fmt.Errorf("decision: soft delete: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var status Status
	var isDeleted bool
	err = tx.QueryRow(ctx, `SELECT status, is_deleted FROM decisions WHERE id = $1`, id).
		Scan(&status, &isDeleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("decision: soft delete check: %w", err)
	}
	if status == StatusSigned {
		return ErrImmutable
	}
	if isDeleted {
		return ErrAlreadyDeleted
	}
	return ErrNotFound
}

// ListByCase returns a case's decisions, newest first. Soft-deleted rows
// are excluded unless the filter asks for them.
func (r *Repository) ListByCase(ctx context.Context, caseID string, filter ListFilter) ([]Decision, error) {
	query := `SELECT ` + decisionColumns + ` FROM decisions WHERE case_id = $1`
	args := []any{caseID}
	if !filter.IncludeDeleted {
		query += ` AND NOT is_deleted`
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(` AND type = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("decision: list by case: %w", err)
	}
	defer rows.Close()

	out := make([]Decision, 0, 16)
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("decision: scan: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("decision: iterate: %w", err)
	}
	return out, nil
}

func scanDecision(row pgx.Row) (Decision, error) {
	var d Decision
	err := row.Scan(
		&d.ID,
		&d.CaseID,
		&d.Type,
		&d.Status,
		&d.Title,
		&d.Content,
		&d.DocumentID,
		&d.RequestID,
		&d.SessionID,
		&d.ClosesDiscussion,
		&d.ClosesCase,
		&d.IsDeleted,
		&d.DeletedAt,
		&d.DeletedBy,
		&d.RevokingDecisionID,
		&d.RevokedByDecisionID,
		&d.SignedAt,
		&d.SignedBy,
		&d.CreatedBy,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return Decision{}, err
	}
	return d, nil
}
