package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the requested session does not exist.
	ErrNotFound = errors.New("session: not found")
	// ErrAttendeeNotFound signals the attendee is not on the roster.
	ErrAttendeeNotFound = errors.New("session: attendee not found")
)

const sessionColumns = `id, hearing_id, case_id, title, status, protocol, protocol_snapshot,
	started_at, ended_at, signed_at, signed_by::text, created_at, updated_at`

// Repository provides data access for discussion sessions. Methods taking a
// pgx.Tx participate in the caller's transaction; the row lock acquired by
// GetForUpdate serializes every multi-record invariant on a session.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, s Session) (Session, error) {
	const insertSQL = `
		INSERT INTO discussion_sessions (id, hearing_id, case_id, title, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + sessionColumns

	rec, err := scanSession(tx.QueryRow(ctx, insertSQL, s.ID, s.HearingID, s.CaseID, s.Title, s.Status))
	if err != nil {
		return Session{}, fmt.Errorf("session: insert: %w", err)
	}
	return rec, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (Session, error) {
	const selectSQL = `SELECT ` + sessionColumns + ` FROM discussion_sessions WHERE id = $1`

	rec, err := scanSession(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("session: get by id: %w", err)
	}
	return rec, nil
}

// GetForUpdate locks the session row for the remainder of the transaction.
func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Session, error) {
	const selectSQL = `SELECT ` + sessionColumns + ` FROM discussion_sessions WHERE id = $1 FOR UPDATE`

	rec, err := scanSession(tx.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("session: get for update: %w", err)
	}
	return rec, nil
}

// ApplyTransition persists a validated status change together with its
// timestamp side effects. The snapshot is set-once: COALESCE keeps an
// existing snapshot untouched.
func (r *Repository) ApplyTransition(ctx context.Context, tx pgx.Tx, s Session) error {
	tag, err := tx.Exec(ctx, `
		UPDATE discussion_sessions
		SET status = $2,
		    started_at = COALESCE(started_at, $3),
		    ended_at = COALESCE(ended_at, $4),
		    signed_at = COALESCE(signed_at, $5),
		    signed_by = COALESCE(signed_by, $6::uuid),
		    protocol_snapshot = COALESCE(protocol_snapshot, $7),
		    updated_at = now()
		WHERE id = $1
	`, s.ID, s.Status, s.StartedAt, s.EndedAt, s.SignedAt, s.SignedBy, s.ProtocolSnapshot)
	if err != nil {
		return fmt.Errorf("session: apply transition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// StampCurrentVersionSigned marks the session's current protocol version as
// signed. Flipping signature fields is the one mutation the write-once
// trigger permits on a stored version.
func (r *Repository) StampCurrentVersionSigned(ctx context.Context, tx pgx.Tx, sessionID, signedBy string, at time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE protocol_versions
		SET signed_at = $2, signed_by = $3::uuid
		WHERE session_id = $1 AND is_current_version
	`, sessionID, at, signedBy)
	if err != nil {
		return fmt.Errorf("session: stamp current version signed: %w", err)
	}
	return nil
}

// Complete moves a session into the completed closure state. Forward-only:
// a cancelled or already-completed session is left untouched and reported.
func (r *Repository) Complete(ctx context.Context, tx pgx.Tx, sessionID string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE discussion_sessions
		SET status = 'completed', updated_at = now()
		WHERE id = $1 AND status NOT IN ('completed', 'cancelled')
	`, sessionID)
	if err != nil {
		return fmt.Errorf("session: complete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, `
		UPDATE hearings h
		SET status = 'completed', updated_at = now()
		FROM discussion_sessions s
		WHERE s.id = $1 AND h.id = s.hearing_id
	`, sessionID); err != nil {
		return fmt.Errorf("session: mirror completed hearing: %w", err)
	}
	return nil
}

func (r *Repository) InsertAttendee(ctx context.Context, tx pgx.Tx, a Attendee) (Attendee, error) {
	const insertSQL = `
		INSERT INTO session_attendees (id, session_id, type, name, person_id)
		VALUES ($1, $2, $3, $4, $5::uuid)
		RETURNING id, session_id, type, name, person_id::text, created_at
	`
	var rec Attendee
	err := tx.QueryRow(ctx, insertSQL, a.ID, a.SessionID, a.Type, a.Name, a.PersonID).
		Scan(&rec.ID, &rec.SessionID, &rec.Type, &rec.Name, &rec.PersonID, &rec.CreatedAt)
	if err != nil {
		return Attendee{}, fmt.Errorf("session: insert attendee: %w", err)
	}
	return rec, nil
}

func (r *Repository) DeleteAttendee(ctx context.Context, tx pgx.Tx, sessionID, attendeeID string) error {
	tag, err := tx.Exec(ctx, `
		DELETE FROM session_attendees
		WHERE session_id = $1 AND id = $2
	`, sessionID, attendeeID)
	if err != nil {
		return fmt.Errorf("session: delete attendee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAttendeeNotFound
	}
	return nil
}

func (r *Repository) ListAttendees(ctx context.Context, sessionID string) ([]Attendee, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, type, name, person_id::text, created_at
		FROM session_attendees
		WHERE session_id = $1
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session: list attendees: %w", err)
	}
	defer rows.Close()

	out := make([]Attendee, 0, 8)
	for rows.Next() {
		var a Attendee
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Type, &a.Name, &a.PersonID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("session: scan attendee: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: iterate attendees: %w", err)
	}
	return out, nil
}

// ListAttendeesTx reads the roster inside the caller's transaction, used by
// the protocol guard so the count it checks is the count that commits.
func (r *Repository) ListAttendeesTx(ctx context.Context, tx pgx.Tx, sessionID string) ([]Attendee, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, session_id, type, name, person_id::text, created_at
		FROM session_attendees
		WHERE session_id = $1
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session: list attendees in tx: %w", err)
	}
	defer rows.Close()

	out := make([]Attendee, 0, 8)
	for rows.Next() {
		var a Attendee
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Type, &a.Name, &a.PersonID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("session: scan attendee: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: iterate attendees: %w", err)
	}
	return out, nil
}

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(
		&s.ID,
		&s.HearingID,
		&s.CaseID,
		&s.Title,
		&s.Status,
		&s.Protocol,
		&s.ProtocolSnapshot,
		&s.StartedAt,
		&s.EndedAt,
		&s.SignedAt,
		&s.SignedBy,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return Session{}, err
	}
	return s, nil
}
