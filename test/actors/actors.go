package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"caseflow/auth"
	"caseflow/decision"
	"caseflow/protocol"
	"caseflow/session"
)

// expected reports whether an error is a legal contention or rule outcome
// rather than a harness failure.
func expected(err error) bool {
	var invalid *session.InvalidTransitionError
	var limit *decision.LimitExceededError
	return errors.Is(err, protocol.ErrLocked) ||
		errors.Is(err, protocol.ErrNoParticipants) ||
		errors.Is(err, session.ErrRosterLocked) ||
		errors.Is(err, session.ErrAttendeeNotFound) ||
		errors.Is(err, decision.ErrInvalidStatusMove) ||
		errors.Is(err, decision.ErrAlreadyRevoked) ||
		errors.Is(err, decision.ErrRevokerTaken) ||
		errors.Is(err, decision.ErrNotSigned) ||
		errors.Is(err, decision.ErrImmutable) ||
		errors.Is(err, decision.ErrNotFound) ||
		errors.As(err, &invalid) ||
		errors.As(err, &limit)
}

// Scribe hammers the version ledger on one session: concurrent saves must
// serialize into contiguous versions with a single current row.
func Scribe(ctx context.Context, svc *protocol.Service, sessionID string, actor auth.Actor, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		text := fmt.Sprintf("hearing notes %d", rand.Int63())
		if _, err := svc.SaveVersion(ctx, sessionID, actor, text); err != nil && !expected(err) {
			return fmt.Errorf("scribe save: %w", err)
		}
		time.Sleep(time.Duration(10+rand.Intn(25)) * time.Millisecond)
	}
}

// RosterEditor churns the attendee roster while the session is still open.
// It removes only attendees it added itself so the seeded attendee keeps the
// guard's participant check satisfied.
func RosterEditor(ctx context.Context, svc *session.Service, sessionID string, actor auth.Actor, stop <-chan struct{}) error {
	var mine []string
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if len(mine) > 0 && rand.Intn(2) == 0 {
			id := mine[len(mine)-1]
			if err := svc.RemoveAttendee(ctx, sessionID, id, actor); err != nil && !expected(err) {
				return fmt.Errorf("roster remove: %w", err)
			}
			mine = mine[:len(mine)-1]
		} else {
			added, err := svc.AddAttendee(ctx, sessionID, actor, session.AttendeeParams{
				Type: session.AttendeeWitness,
				Name: fmt.Sprintf("Witness %d", rand.Int63()),
			})
			if err != nil {
				if !expected(err) {
					return fmt.Errorf("roster add: %w", err)
				}
			} else {
				mine = append(mine, added.ID)
			}
		}
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// Transitioner races other transitioners to drive a fresh session forward
// through its one-way table. Invalid moves are the point.
func Transitioner(ctx context.Context, svc *session.Service, sessionID string, actor auth.Actor, stop <-chan struct{}) error {
	targets := []func() error{
		func() error { _, err := svc.Start(ctx, sessionID, actor); return err },
		func() error { _, err := svc.End(ctx, sessionID, actor); return err },
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if err := targets[rand.Intn(len(targets))](); err != nil && !expected(err) {
			return fmt.Errorf("transition: %w", err)
		}
		time.Sleep(time.Duration(30+rand.Intn(60)) * time.Millisecond)
	}
}

// DraftAuthor creates draft decisions against the ceiling and occasionally
// soft-deletes one to free a slot. Verifies the limiter admits and blocks
// without ever letting the count in the store exceed the cap.
func DraftAuthor(ctx context.Context, svc *decision.Service, caseID, requestID string, actor auth.Actor, stop <-chan struct{}) error {
	var drafts []string
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if len(drafts) > 2 && rand.Intn(3) == 0 {
			id := drafts[0]
			drafts = drafts[1:]
			if err := svc.SoftDelete(ctx, id, actor); err != nil && !expected(err) {
				return fmt.Errorf("author delete: %w", err)
			}
		} else {
			req := requestID
			created, err := svc.Create(ctx, actor, decision.CreateParams{
				CaseID:    caseID,
				Type:      decision.TypeNote,
				Title:     fmt.Sprintf("note %d", rand.Int63()),
				RequestID: &req,
			})
			if err != nil {
				if !expected(err) {
					return fmt.Errorf("author create: %w", err)
				}
			} else {
				drafts = append(drafts, created.ID)
			}
		}
		time.Sleep(time.Duration(15+rand.Intn(30)) * time.Millisecond)
	}
}

// DecisionSigner walks random live decisions forward through
// draft -> sent_for_signature -> signed.
func DecisionSigner(ctx context.Context, svc *decision.Service, caseID string, actor auth.Actor, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		list, err := svc.List(ctx, caseID, decision.ListFilter{})
		if err != nil {
			return fmt.Errorf("signer list: %w", err)
		}
		for _, d := range list {
			if d.Status == decision.StatusSigned || rand.Intn(3) != 0 {
				continue
			}
			next := decision.StatusSentForSignature
			if d.Status == decision.StatusSentForSignature {
				next = decision.StatusSigned
			}
			if _, err := svc.UpdateStatus(ctx, d.ID, actor, next); err != nil && !expected(err) {
				return fmt.Errorf("signer advance: %w", err)
			}
		}
		time.Sleep(time.Duration(50+rand.Intn(80)) * time.Millisecond)
	}
}

// Revoker pairs signed decisions with fresh revokers. Concurrent revokers
// aiming at the same target must produce exactly one reciprocal link.
func Revoker(ctx context.Context, svc *decision.Service, caseID string, actor auth.Actor, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		list, err := svc.List(ctx, caseID, decision.ListFilter{Status: decision.StatusSigned})
		if err != nil {
			return fmt.Errorf("revoker list: %w", err)
		}
		for _, d := range list {
			if d.RevokingDecisionID != nil || rand.Intn(4) != 0 {
				continue
			}
			revoker, err := svc.Create(ctx, actor, decision.CreateParams{
				CaseID:  caseID,
				Type:    decision.TypeDiscussion,
				Title:   fmt.Sprintf("revocation of %s", d.ID),
				Content: "revoked on review",
			})
			if err != nil {
				if expected(err) {
					continue
				}
				return fmt.Errorf("revoker create: %w", err)
			}
			if err := svc.Revoke(ctx, d.ID, revoker.ID, actor); err != nil && !expected(err) {
				return fmt.Errorf("revoke: %w", err)
			}
		}
		time.Sleep(time.Duration(100+rand.Intn(120)) * time.Millisecond)
	}
}
