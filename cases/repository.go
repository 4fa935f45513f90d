package cases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Status values for a case aggregate.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// ErrNotFound signals the requested case does not exist.
var ErrNotFound = errors.New("cases: not found")

// Record mirrors the cases table.
type Record struct {
	ID        string
	Title     string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository provides access to the case aggregate. SetStatus participates
// in the caller's transaction so a case closure commits together with the
// decision that triggered it.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, title string) (Record, error) {
	if title == "" {
		return Record{}, fmt.Errorf("cases: title required")
	}

	const insertSQL = `
		INSERT INTO cases (title, status)
		VALUES ($1, 'open')
		RETURNING id, title, status, created_at, updated_at
	`
	var rec Record
	err := r.pool.QueryRow(ctx, insertSQL, title).
		Scan(&rec.ID, &rec.Title, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("cases: create: %w", err)
	}
	return rec, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Record, error) {
	const selectSQL = `
		SELECT id, title, status, created_at, updated_at
		FROM cases
		WHERE id = $1
	`
	var rec Record
	err := r.pool.QueryRow(ctx, selectSQL, id).
		Scan(&rec.ID, &rec.Title, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("cases: get: %w", err)
	}
	return rec, nil
}

// SetStatus updates the case status inside the supplied transaction.
func (r *Repository) SetStatus(ctx context.Context, tx pgx.Tx, caseID, status string) error {
	if status != StatusOpen && status != StatusClosed {
		return fmt.Errorf("cases: invalid status %q", status)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE cases
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, caseID, status)
	if err != nil {
		return fmt.Errorf("cases: set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
