package protocol

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const versionColumns = `id, session_id, case_id, content, version, is_current_version,
	signed_at, signed_by::text, created_by::text, created_at, updated_at`

// Repository provides data access for the protocol version ledger. All
// writes run inside the caller's transaction; callers hold the session row
// lock so version numbering and the current-pointer flip are serialized.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// NextVersion returns the next version number for the session. Safe only
// under the session row lock.
func (r *Repository) NextVersion(ctx context.Context, tx pgx.Tx, sessionID string) (int, error) {
	var next int
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1
		FROM protocol_versions
		WHERE session_id = $1
	`, sessionID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("protocol: next version: %w", err)
	}
	return next, nil
}

// DemoteCurrent clears the current-pointer before a new version is inserted.
// Only the flag moves; the write-once trigger rejects anything else.
func (r *Repository) DemoteCurrent(ctx context.Context, tx pgx.Tx, sessionID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE protocol_versions
		SET is_current_version = false
		WHERE session_id = $1 AND is_current_version
	`, sessionID)
	if err != nil {
		return fmt.Errorf("protocol: demote current: %w", err)
	}
	return nil
}

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, v Version) (Version, error) {
	const insertSQL = `
		INSERT INTO protocol_versions (id, session_id, case_id, content, version, is_current_version, created_by)
		VALUES ($1, $2, $3, $4, $5, true, $6::uuid)
		RETURNING ` + versionColumns

	rec, err := scanVersion(tx.QueryRow(ctx, insertSQL, v.ID, v.SessionID, v.CaseID, v.Content, v.Version, v.CreatedBy))
	if err != nil {
		return Version{}, fmt.Errorf("protocol: insert version: %w", err)
	}
	return rec, nil
}

// MaterializeProtocol mirrors the new current content onto the session row,
// which is what editors read back between saves.
func (r *Repository) MaterializeProtocol(ctx context.Context, tx pgx.Tx, sessionID, content string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE discussion_sessions
		SET protocol = $2, updated_at = now()
		WHERE id = $1
	`, sessionID, content)
	if err != nil {
		return fmt.Errorf("protocol: materialize: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("protocol: materialize: session %s vanished", sessionID)
	}
	return nil
}

// Current returns the session's current version, or ErrNoVersions.
func (r *Repository) Current(ctx context.Context, sessionID string) (Version, error) {
	const selectSQL = `SELECT ` + versionColumns + `
		FROM protocol_versions
		WHERE session_id = $1 AND is_current_version`

	rec, err := scanVersion(r.pool.QueryRow(ctx, selectSQL, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Version{}, ErrNoVersions
		}
		return Version{}, fmt.Errorf("protocol: current version: %w", err)
	}
	return rec, nil
}

// ListBySession returns the full ledger, newest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]Version, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+versionColumns+`
		FROM protocol_versions
		WHERE session_id = $1
		ORDER BY version DESC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("protocol: list versions: %w", err)
	}
	defer rows.Close()

	out := make([]Version, 0, 8)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("protocol: scan version: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("protocol: iterate versions: %w", err)
	}
	return out, nil
}

func scanVersion(row pgx.Row) (Version, error) {
	var v Version
	err := row.Scan(
		&v.ID,
		&v.SessionID,
		&v.CaseID,
		&v.Content,
		&v.Version,
		&v.IsCurrentVersion,
		&v.SignedAt,
		&v.SignedBy,
		&v.CreatedBy,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return Version{}, err
	}
	return v, nil
}
