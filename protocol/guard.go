package protocol

import (
	"fmt"
	"time"

	"caseflow/hearing"
	"caseflow/session"
)

// Guard evaluates the preconditions for protocol writes. It is read-only:
// callers load the session (with roster) and hearing, the guard only judges.
//
// The hearing-day check compares calendar dates in a single configured
// location (HEARING_TIMEZONE, server-local by default). The scheduled date
// is a plain DATE, so its own year/month/day are compared as stored rather
// than shifted through a zone conversion.
type Guard struct {
	Now func() time.Time
	Loc *time.Location
}

func NewGuard(loc *time.Location) *Guard {
	if loc == nil {
		loc = time.Local
	}
	return &Guard{Now: time.Now, Loc: loc}
}

// CanWrite evaluates the write preconditions in order, first failure wins:
// the session exists, today is the hearing's own day, the session is
// active, and at least one attendee is present.
func (g *Guard) CanWrite(sess *session.Session, h *hearing.Hearing) error {
	if sess == nil {
		return session.ErrNotFound
	}
	if h == nil {
		return hearing.ErrNotFound
	}

	if !onScheduledDay(g.Now().In(g.Loc), h.ScheduledDate) {
		return fmt.Errorf("%w: protocol may only be edited on the hearing day (%s)",
			ErrLocked, h.ScheduledDate.Format("2006-01-02"))
	}
	if sess.Status != session.StatusActive {
		return fmt.Errorf("%w: session is %s, protocol writes require an active session", ErrLocked, sess.Status)
	}
	if len(sess.Attendees) == 0 {
		return ErrNoParticipants
	}
	return nil
}

// CanEdit short-circuits to a locked failure once the session has ended or
// been signed, before delegating to CanWrite. Past those states the
// protocol is permanently locked.
func (g *Guard) CanEdit(sess *session.Session, h *hearing.Hearing) error {
	if sess != nil && (sess.Status == session.StatusEnded || sess.Status == session.StatusSigned) {
		return fmt.Errorf("%w: session is %s, the protocol can no longer change", ErrLocked, sess.Status)
	}
	return g.CanWrite(sess, h)
}

func onScheduledDay(today, scheduled time.Time) bool {
	ty, tm, td := today.Date()
	sy, sm, sd := scheduled.Date()
	return ty == sy && tm == sm && td == sd
}
