package audit

import (
	"context"
	"encoding/json"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Recorder is the fire-and-forget audit boundary the domain services write
// through. Implementations must never surface failures to callers.
type Recorder interface {
	Record(ctx context.Context, actorID, action, resourceType, resourceID string, details map[string]any)
}

// Sink persists audit events into audit_logs. A failed write is logged and
// dropped; it must never roll back or fail the primary operation.
type Sink struct {
	pool *pgxpool.Pool
}

func NewSink(pool *pgxpool.Pool) *Sink {
	return &Sink{pool: pool}
}

func (s *Sink) Record(ctx context.Context, actorID, action, resourceType, resourceID string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	body, err := json.Marshal(details)
	if err != nil {
		log.Printf("audit: drop %s on %s/%s: marshal details: %v", action, resourceType, resourceID, err)
		return
	}

	const insertSQL = `
		INSERT INTO audit_logs (actor_id, action, resource_type, resource_id, details)
		VALUES ($1, $2, $3, $4, $5::jsonb)
	`
	if _, err := s.pool.Exec(ctx, insertSQL, actorID, action, resourceType, resourceID, body); err != nil {
		log.Printf("audit: drop %s on %s/%s: %v", action, resourceType, resourceID, err)
	}
}

// Discard is a Recorder that drops every event. Useful for tests and for
// wiring services before the sink is available.
type Discard struct{}

func (Discard) Record(context.Context, string, string, string, string, map[string]any) {}
