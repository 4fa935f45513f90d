package hearing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"caseflow/audit"
	"caseflow/auth"
)

// ErrForbidden signals the actor may not schedule hearings.
var ErrForbidden = errors.New("hearing: forbidden")

type Service struct {
	repo  *Repository
	audit audit.Recorder
	now   func() time.Time
}

func NewService(repo *Repository, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.Discard{}
	}
	return &Service{
		repo:  repo,
		audit: recorder,
		now:   time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create schedules a hearing. Only privileged roles (arbitrators and case
// admins) may do so.
func (s *Service) Create(ctx context.Context, actor auth.Actor, params CreateParams) (Hearing, error) {
	if !auth.IsPrivileged(actor.Role) {
		return Hearing{}, ErrForbidden
	}
	if params.CaseID == "" {
		return Hearing{}, fmt.Errorf("hearing: case id required")
	}
	if params.ScheduledDate.IsZero() {
		return Hearing{}, fmt.Errorf("hearing: scheduled date required")
	}
	if params.Type == "" {
		params.Type = TypeMain
	}
	if !validType(params.Type) {
		return Hearing{}, fmt.Errorf("hearing: invalid type %q", params.Type)
	}

	h, err := s.repo.Insert(ctx, params, actor.ID)
	if err != nil {
		return Hearing{}, err
	}

	s.audit.Record(ctx, actor.ID, "hearing.created", "hearing", h.ID, map[string]any{
		"case_id":        h.CaseID,
		"scheduled_date": h.ScheduledDate.Format("2006-01-02"),
		"type":           string(h.Type),
	})
	return h, nil
}

func (s *Service) Get(ctx context.Context, id string) (Hearing, error) {
	if id == "" {
		return Hearing{}, fmt.Errorf("hearing: id required")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByCase(ctx context.Context, caseID string) ([]Hearing, error) {
	if caseID == "" {
		return nil, fmt.Errorf("hearing: case id required")
	}
	return s.repo.ListByCase(ctx, caseID)
}
