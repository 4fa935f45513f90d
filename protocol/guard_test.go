package protocol

import (
	"errors"
	"testing"
	"time"

	"caseflow/hearing"
	"caseflow/session"
)

func fixedGuard(now time.Time) *Guard {
	g := NewGuard(time.UTC)
	g.Now = func() time.Time { return now }
	return g
}

func activeSession() *session.Session {
	return &session.Session{
		ID:     "s-1",
		Status: session.StatusActive,
		Attendees: []session.Attendee{
			{ID: "a-1", Name: "Clara Clerk", Type: session.AttendeeSecretary},
		},
	}
}

func hearingOn(y int, m time.Month, d int) *hearing.Hearing {
	return &hearing.Hearing{
		ID:            "h-1",
		CaseID:        "case-1",
		ScheduledDate: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
	}
}

func TestGuard_CanWrite_ChecksOrdered(t *testing.T) {
	now := time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)
	g := fixedGuard(now)
	h := hearingOn(2026, 3, 14)

	// 1. session existence wins over everything else
	if err := g.CanWrite(nil, nil); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected session.ErrNotFound first, got %v", err)
	}
	if err := g.CanWrite(activeSession(), nil); !errors.Is(err, hearing.ErrNotFound) {
		t.Fatalf("expected hearing.ErrNotFound, got %v", err)
	}

	// 2. wrong day beats wrong status
	stale := activeSession()
	stale.Status = session.StatusCreated
	if err := g.CanWrite(stale, hearingOn(2026, 3, 13)); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked for wrong day, got %v", err)
	}

	// 3. non-active status on the right day
	if err := g.CanWrite(stale, h); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked for created session, got %v", err)
	}

	// 4. empty roster last
	empty := activeSession()
	empty.Attendees = nil
	if err := g.CanWrite(empty, h); !errors.Is(err, ErrNoParticipants) {
		t.Fatalf("expected ErrNoParticipants, got %v", err)
	}

	if err := g.CanWrite(activeSession(), h); err != nil {
		t.Fatalf("expected write admitted, got %v", err)
	}
}

func TestGuard_CanWrite_DayBoundary(t *testing.T) {
	h := hearingOn(2026, 3, 14)

	early := fixedGuard(time.Date(2026, 3, 14, 0, 0, 1, 0, time.UTC))
	if err := early.CanWrite(activeSession(), h); err != nil {
		t.Fatalf("expected admission just after midnight, got %v", err)
	}

	dayAfter := fixedGuard(time.Date(2026, 3, 15, 0, 0, 1, 0, time.UTC))
	if err := dayAfter.CanWrite(activeSession(), h); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked the day after, got %v", err)
	}
}

func TestGuard_CanEdit_ShortCircuitsPastEnd(t *testing.T) {
	g := fixedGuard(time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC))
	h := hearingOn(2026, 3, 14)

	for _, st := range []session.Status{session.StatusEnded, session.StatusSigned} {
		sess := activeSession()
		sess.Status = st
		if err := g.CanEdit(sess, h); !errors.Is(err, ErrLocked) {
			t.Fatalf("status %s: expected ErrLocked, got %v", st, err)
		}
	}

	if err := g.CanEdit(activeSession(), h); err != nil {
		t.Fatalf("expected edit admitted on active session, got %v", err)
	}
}
