package hearing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested hearing does not exist.
var ErrNotFound = errors.New("hearing: not found")

const hearingColumns = `id, case_id, scheduled_date, type, status, COALESCE(created_by::text, ''), created_at, updated_at`

// Repository provides access to the hearing registry.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, params CreateParams, createdBy string) (Hearing, error) {
	const insertSQL = `
		INSERT INTO hearings (case_id, scheduled_date, type, status, created_by)
		VALUES ($1, $2, $3, 'created', $4)
		RETURNING ` + hearingColumns

	h, err := scanHearing(r.pool.QueryRow(ctx, insertSQL, params.CaseID, params.ScheduledDate, params.Type, createdBy))
	if err != nil {
		return Hearing{}, fmt.Errorf("hearing: insert: %w", err)
	}
	return h, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (Hearing, error) {
	const selectSQL = `SELECT ` + hearingColumns + ` FROM hearings WHERE id = $1`

	h, err := scanHearing(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Hearing{}, ErrNotFound
		}
		return Hearing{}, fmt.Errorf("hearing: get by id: %w", err)
	}
	return h, nil
}

// GetTx reads a hearing inside the caller's transaction.
func (r *Repository) GetTx(ctx context.Context, tx pgx.Tx, id string) (Hearing, error) {
	const selectSQL = `SELECT ` + hearingColumns + ` FROM hearings WHERE id = $1`

	h, err := scanHearing(tx.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Hearing{}, ErrNotFound
		}
		return Hearing{}, fmt.Errorf("hearing: get in tx: %w", err)
	}
	return h, nil
}

// MirrorStatus updates the hearing's status column inside the caller's
// transaction so the registry tracks its session atomically.
func (r *Repository) MirrorStatus(ctx context.Context, tx pgx.Tx, id, status string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE hearings
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("hearing: mirror status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ListByCase(ctx context.Context, caseID string) ([]Hearing, error) {
	const selectSQL = `
		SELECT ` + hearingColumns + `
		FROM hearings
		WHERE case_id = $1
		ORDER BY scheduled_date ASC, created_at ASC
	`
	rows, err := r.pool.Query(ctx, selectSQL, caseID)
	if err != nil {
		return nil, fmt.Errorf("hearing: list by case: %w", err)
	}
	defer rows.Close()

	out := make([]Hearing, 0, 8)
	for rows.Next() {
		h, err := scanHearing(rows)
		if err != nil {
			return nil, fmt.Errorf("hearing: scan: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hearing: iterate: %w", err)
	}
	return out, nil
}

func scanHearing(row pgx.Row) (Hearing, error) {
	var h Hearing
	err := row.Scan(
		&h.ID,
		&h.CaseID,
		&h.ScheduledDate,
		&h.Type,
		&h.Status,
		&h.CreatedBy,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
	if err != nil {
		return Hearing{}, err
	}
	return h, nil
}
