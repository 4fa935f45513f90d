package main

import (
	"context"
	"log"
	"time"

	"caseflow/audit"
	"caseflow/auth"
	"caseflow/cases"
	"caseflow/config"
	"caseflow/db"
	"caseflow/decision"
	"caseflow/hearing"
	"caseflow/protocol"
	"caseflow/session"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	loc := time.Local
	if cfg.HearingTimezone != "Local" {
		loc, err = time.LoadLocation(cfg.HearingTimezone)
		if err != nil {
			log.Fatalf("load hearing timezone %q: %v", cfg.HearingTimezone, err)
		}
	}

	sink := audit.NewSink(pool)

	authService := auth.NewService(auth.NewRepository(pool), cfg.JWTSecret)
	caseRepo := cases.NewRepository(pool)
	hearingRepo := hearing.NewRepository(pool)
	hearingService := hearing.NewService(hearingRepo, sink)
	sessionRepo := session.NewRepository(pool)
	sessionService := session.NewService(pool, sessionRepo, hearingRepo, sink)
	protocolService := protocol.NewService(pool, protocol.NewRepository(pool), sessionRepo, hearingRepo, protocol.NewGuard(loc), sink)
	decisionService := decision.NewService(pool, decision.NewRepository(pool), sessionRepo, caseRepo, sink, cfg.OpenDraftLimit)

	log.Printf("caseflow services ready: auth=%t hearings=%t sessions=%t protocol=%t decisions=%t",
		authService != nil, hearingService != nil, sessionService != nil, protocolService != nil, decisionService != nil)
}
