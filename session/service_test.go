package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"caseflow/auth"
	"caseflow/hearing"
)

var (
	arbitrator = auth.Actor{ID: "arb-1", Role: auth.RoleArbitrator}
	secretary  = auth.Actor{ID: "sec-1", Role: auth.RoleSecretary}
)

func newTestService(store *fakeStore) (*Service, *fakePool, *fakeHearings) {
	pool := &fakePool{}
	hearings := &fakeHearings{hearing: hearing.Hearing{ID: "h-1", CaseID: "case-1"}}
	svc := NewService(pool, store, hearings, nil).
		WithIDGenerator(func() string { return "fixed-id" }).
		WithClock(func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) })
	return svc, pool, hearings
}

func TestService_Create_CopiesCaseFromHearing(t *testing.T) {
	store := newFakeStore()
	svc, pool, hearings := newTestService(store)

	created, err := svc.Create(context.Background(), secretary, CreateParams{HearingID: "h-1", Title: "Main"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.CaseID != "case-1" {
		t.Fatalf("expected case id copied from hearing, got %q", created.CaseID)
	}
	if created.Status != StatusCreated {
		t.Fatalf("expected created status, got %s", created.Status)
	}
	if !pool.tx.committed {
		t.Error("expected commit")
	}
	if hearings.mirrored != string(StatusCreated) {
		t.Errorf("expected hearing mirror %q, got %q", StatusCreated, hearings.mirrored)
	}
}

func TestService_Start_SetsStartedAt(t *testing.T) {
	store := newFakeStore()
	store.sessions["s-1"] = Session{ID: "s-1", HearingID: "h-1", CaseID: "case-1", Status: StatusCreated}
	svc, pool, _ := newTestService(store)

	rec, err := svc.Start(context.Background(), "s-1", secretary)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if rec.Status != StatusActive {
		t.Fatalf("expected active, got %s", rec.Status)
	}
	if rec.StartedAt == nil {
		t.Fatal("expected StartedAt to be set")
	}
	if !pool.tx.committed {
		t.Error("expected commit")
	}
}

func TestService_Start_FromActiveRejected(t *testing.T) {
	store := newFakeStore()
	store.sessions["s-1"] = Session{ID: "s-1", HearingID: "h-1", Status: StatusActive}
	svc, pool, _ := newTestService(store)

	_, err := svc.Start(context.Background(), "s-1", secretary)
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if pool.tx.committed {
		t.Error("expected no commit on rejected transition")
	}
	if !pool.tx.rolled {
		t.Error("expected rollback")
	}
}

func TestService_End_FreezesSnapshot(t *testing.T) {
	store := newFakeStore()
	store.sessions["s-1"] = Session{ID: "s-1", HearingID: "h-1", Status: StatusActive, Protocol: "the minutes"}
	svc, _, _ := newTestService(store)

	rec, err := svc.End(context.Background(), "s-1", secretary)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if rec.ProtocolSnapshot == nil || *rec.ProtocolSnapshot != "the minutes" {
		t.Fatalf("expected snapshot frozen from protocol, got %v", rec.ProtocolSnapshot)
	}
	if rec.EndedAt == nil {
		t.Fatal("expected EndedAt to be set")
	}
}

func TestService_End_NeverOverwritesSnapshot(t *testing.T) {
	frozen := "original"
	store := newFakeStore()
	store.sessions["s-1"] = Session{ID: "s-1", HearingID: "h-1", Status: StatusActive, Protocol: "newer text", ProtocolSnapshot: &frozen}
	svc, _, _ := newTestService(store)

	rec, err := svc.End(context.Background(), "s-1", secretary)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if *rec.ProtocolSnapshot != "original" {
		t.Fatalf("snapshot must be set-once, got %q", *rec.ProtocolSnapshot)
	}
}

func TestService_Sign_RequiresPrivilegedRole(t *testing.T) {
	store := newFakeStore()
	store.sessions["s-1"] = Session{ID: "s-1", HearingID: "h-1", Status: StatusEnded}
	svc, _, _ := newTestService(store)

	if _, err := svc.Sign(context.Background(), "s-1", secretary); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for secretary, got %v", err)
	}
}

func TestService_Sign_StampsAndBackfills(t *testing.T) {
	store := newFakeStore()
	store.sessions["s-1"] = Session{ID: "s-1", HearingID: "h-1", Status: StatusEnded, Protocol: "late minutes"}
	svc, _, _ := newTestService(store)

	rec, err := svc.Sign(context.Background(), "s-1", arbitrator)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if rec.Status != StatusSigned {
		t.Fatalf("expected signed, got %s", rec.Status)
	}
	if rec.SignedAt == nil || rec.SignedBy == nil || *rec.SignedBy != arbitrator.ID {
		t.Fatalf("expected signature fields, got at=%v by=%v", rec.SignedAt, rec.SignedBy)
	}
	if rec.ProtocolSnapshot == nil || *rec.ProtocolSnapshot != "late minutes" {
		t.Fatalf("expected snapshot backfilled at sign, got %v", rec.ProtocolSnapshot)
	}
	if !store.stampedSigned {
		t.Error("expected the current protocol version to be stamped signed")
	}
}

func TestService_Cancel(t *testing.T) {
	store := newFakeStore()
	store.sessions["s-1"] = Session{ID: "s-1", HearingID: "h-1", Status: StatusActive}
	svc, _, hearings := newTestService(store)

	rec, err := svc.Cancel(context.Background(), "s-1", arbitrator)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if rec.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", rec.Status)
	}
	if hearings.mirrored != string(StatusCancelled) {
		t.Errorf("expected hearing mirror cancelled, got %q", hearings.mirrored)
	}
}

func TestService_Cancel_RejectedPastActive(t *testing.T) {
	store := newFakeStore()
	store.sessions["s-1"] = Session{ID: "s-1", HearingID: "h-1", Status: StatusEnded}
	svc, _, _ := newTestService(store)

	_, err := svc.Cancel(context.Background(), "s-1", arbitrator)
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}

	if _, err := svc.Cancel(context.Background(), "s-1", secretary); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for secretary, got %v", err)
	}
}

func TestService_AddAttendee_LockedAfterEnd(t *testing.T) {
	store := newFakeStore()
	store.sessions["s-1"] = Session{ID: "s-1", HearingID: "h-1", Status: StatusEnded}
	svc, _, _ := newTestService(store)

	_, err := svc.AddAttendee(context.Background(), "s-1", secretary, AttendeeParams{Name: "Late Witness", Type: AttendeeWitness})
	if !errors.Is(err, ErrRosterLocked) {
		t.Fatalf("expected ErrRosterLocked, got %v", err)
	}
}

func TestService_AddAttendee_ValidatesType(t *testing.T) {
	store := newFakeStore()
	store.sessions["s-1"] = Session{ID: "s-1", HearingID: "h-1", Status: StatusActive}
	svc, _, _ := newTestService(store)

	if _, err := svc.AddAttendee(context.Background(), "s-1", secretary, AttendeeParams{Name: "X", Type: "judge"}); err == nil {
		t.Fatal("expected rejection of unknown attendee type")
	}

	added, err := svc.AddAttendee(context.Background(), "s-1", secretary, AttendeeParams{Name: "Y"})
	if err != nil {
		t.Fatalf("add attendee: %v", err)
	}
	if added.Type != AttendeeOther {
		t.Fatalf("expected default type other, got %s", added.Type)
	}
}

func TestService_RemoveAttendee_Unknown(t *testing.T) {
	store := newFakeStore()
	store.sessions["s-1"] = Session{ID: "s-1", HearingID: "h-1", Status: StatusActive}
	svc, _, _ := newTestService(store)

	if err := svc.RemoveAttendee(context.Background(), "s-1", "nope", secretary); !errors.Is(err, ErrAttendeeNotFound) {
		t.Fatalf("expected ErrAttendeeNotFound, got %v", err)
	}
}

type fakeStore struct {
	sessions      map[string]Session
	attendees     map[string][]Attendee
	stampedSigned bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: map[string]Session{}, attendees: map[string][]Attendee{}}
}

func (f *fakeStore) Insert(ctx context.Context, tx pgx.Tx, s Session) (Session, error) {
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Session, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeStore) ApplyTransition(ctx context.Context, tx pgx.Tx, s Session) error {
	if _, ok := f.sessions[s.ID]; !ok {
		return ErrNotFound
	}
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeStore) StampCurrentVersionSigned(ctx context.Context, tx pgx.Tx, sessionID, signedBy string, at time.Time) error {
	f.stampedSigned = true
	return nil
}

func (f *fakeStore) InsertAttendee(ctx context.Context, tx pgx.Tx, a Attendee) (Attendee, error) {
	f.attendees[a.SessionID] = append(f.attendees[a.SessionID], a)
	return a, nil
}

func (f *fakeStore) DeleteAttendee(ctx context.Context, tx pgx.Tx, sessionID, attendeeID string) error {
	list := f.attendees[sessionID]
	for i, a := range list {
		if a.ID == attendeeID {
			f.attendees[sessionID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrAttendeeNotFound
}

func (f *fakeStore) ListAttendees(ctx context.Context, sessionID string) ([]Attendee, error) {
	return f.attendees[sessionID], nil
}

type fakeHearings struct {
	hearing  hearing.Hearing
	mirrored string
}

func (f *fakeHearings) GetTx(ctx context.Context, tx pgx.Tx, id string) (hearing.Hearing, error) {
	if id != f.hearing.ID {
		return hearing.Hearing{}, hearing.ErrNotFound
	}
	return f.hearing, nil
}

func (f *fakeHearings) MirrorStatus(ctx context.Context, tx pgx.Tx, id, status string) error {
	f.mirrored = status
	return nil
}

type fakePool struct {
	tx *fakeTx
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{}
	return f.tx, nil
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolled = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}
