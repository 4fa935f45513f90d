package protocol_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"caseflow/auth"
	"caseflow/hearing"
	"caseflow/protocol"
	"caseflow/session"
)

// TestSessionProtocolLifecycle_Integration runs the full write path against a
// live PostgreSQL via DATABASE_URL: guard rejections before activation,
// version ledger growth, snapshot freeze at end, permanent lock after sign.
func TestSessionProtocolLifecycle_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	if !tableExists(ctx, t, pool, "discussion_sessions") || !tableExists(ctx, t, pool, "protocol_versions") {
		t.Skip("database schema missing; apply migrations/0001_init.sql first")
	}

	var caseID, arbitratorID, secretaryID, hearingID string
	if err := pool.QueryRow(ctx, `INSERT INTO cases (title) VALUES ('Integration Case') RETURNING id`).Scan(&caseID); err != nil {
		t.Fatalf("seed case: %v", err)
	}
	if err := pool.QueryRow(ctx, `INSERT INTO users (email, full_name, role) VALUES ($1, 'Ada Arbitrator', 'arbitrator') RETURNING id`,
		fmt.Sprintf("ada+%d@example.com", time.Now().UnixNano())).Scan(&arbitratorID); err != nil {
		t.Fatalf("seed arbitrator: %v", err)
	}
	if err := pool.QueryRow(ctx, `INSERT INTO users (email, full_name, role) VALUES ($1, 'Sara Secretary', 'secretary') RETURNING id`,
		fmt.Sprintf("sara+%d@example.com", time.Now().UnixNano())).Scan(&secretaryID); err != nil {
		t.Fatalf("seed secretary: %v", err)
	}
	// scheduled today so the hearing-day gate admits writes
	if err := pool.QueryRow(ctx, `INSERT INTO hearings (case_id, scheduled_date, type, created_by) VALUES ($1, CURRENT_DATE, 'main_hearing', $2) RETURNING id`,
		caseID, arbitratorID).Scan(&hearingID); err != nil {
		t.Fatalf("seed hearing: %v", err)
	}

	arbitrator := auth.Actor{ID: arbitratorID, Role: auth.RoleArbitrator}
	secretary := auth.Actor{ID: secretaryID, Role: auth.RoleSecretary}

	hearingRepo := hearing.NewRepository(pool)
	sessionRepo := session.NewRepository(pool)
	sessionSvc := session.NewService(pool, sessionRepo, hearingRepo, nil)
	protocolSvc := protocol.NewService(pool, protocol.NewRepository(pool), sessionRepo, hearingRepo, protocol.NewGuard(nil), nil)

	sess, err := sessionSvc.Create(ctx, secretary, session.CreateParams{HearingID: hearingID, Title: "Main"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	// created: guard must refuse before activation
	if _, err := protocolSvc.SaveVersion(ctx, sess.ID, secretary, "too early"); !errors.Is(err, protocol.ErrLocked) {
		t.Fatalf("expected ErrLocked on created session, got %v", err)
	}

	if _, err := sessionSvc.AddAttendee(ctx, sess.ID, secretary, session.AttendeeParams{Type: session.AttendeeWitness, Name: "Walter Witness"}); err != nil {
		t.Fatalf("add attendee: %v", err)
	}
	if _, err := sessionSvc.Start(ctx, sess.ID, secretary); err != nil {
		t.Fatalf("start: %v", err)
	}

	res1, err := protocolSvc.SaveVersion(ctx, sess.ID, secretary, "text")
	if err != nil {
		t.Fatalf("save v1: %v", err)
	}
	if res1.Version.Version != 1 || !res1.Version.IsCurrentVersion {
		t.Fatalf("expected version 1 current, got %+v", res1.Version)
	}

	res2, err := protocolSvc.SaveVersion(ctx, sess.ID, secretary, "text2")
	if err != nil {
		t.Fatalf("save v2: %v", err)
	}
	if res2.Version.Version != 2 {
		t.Fatalf("expected version 2, got %d", res2.Version.Version)
	}

	versions, err := protocolSvc.ListVersions(ctx, sess.ID)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}
	current := 0
	for _, v := range versions {
		if v.IsCurrentVersion {
			current++
		}
	}
	if current != 1 {
		t.Fatalf("expected exactly one current version, got %d", current)
	}

	loaded, err := sessionSvc.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if !strings.Contains(loaded.Protocol, "text2") || !protocol.HasHeader(loaded.Protocol) {
		t.Fatalf("expected materialized protocol with banner and text2, got %q", loaded.Protocol)
	}

	ended, err := sessionSvc.End(ctx, sess.ID, secretary)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.ProtocolSnapshot == nil || *ended.ProtocolSnapshot != loaded.Protocol {
		t.Fatalf("expected snapshot frozen from materialized protocol")
	}

	signed, err := sessionSvc.Sign(ctx, sess.ID, arbitrator)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if signed.SignedAt == nil {
		t.Fatal("expected signedAt set")
	}

	cur, err := protocolSvc.CurrentVersion(ctx, sess.ID)
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if cur.SignedAt == nil || cur.SignedBy == nil {
		t.Fatal("expected current version stamped signed")
	}

	if _, err := protocolSvc.SaveVersion(ctx, sess.ID, secretary, "after the fact"); !errors.Is(err, protocol.ErrLocked) {
		t.Fatalf("expected ErrLocked after sign, got %v", err)
	}
}

func tableExists(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()
	var ok bool
	if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, name).Scan(&ok); err != nil {
		t.Fatalf("check table %s: %v", name, err)
	}
	return ok
}
