package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gatelog/internal/config"
	"gatelog/internal/db"
	"gatelog/internal/gatelog/service"
	"gatelog/internal/gatelog/store"
	"gatelog/internal/gatelog/store/csvledger"
	"gatelog/internal/gatelog/store/memory"
	"gatelog/internal/gatelog/store/sqlite"
	"gatelog/internal/httpapi"
)

func main() {
	logger := log.New(os.Stdout, "gatelog-server ", log.LstdFlags|log.LUTC)
	cfg := config.Load(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	entries, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer cleanup()

	presenceSvc := service.NewPresenceService(entries)
	visitorSvc := service.NewVisitorService(entries)
	reportSvc := service.NewReportService(entries)

	auditor := service.NewOpenEntryAuditor(entries, service.AuditorConfig{
		AlertHours:      cfg.OpenAlertHours,
		IntervalMinutes: cfg.AuditIntervalMinutes,
	}, logger)
	auditor.Start(ctx)
	defer auditor.Stop()

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:        logger,
		Addr:          cfg.HTTPAddr,
		Presence:      presenceSvc,
		Visitors:      visitorSvc,
		Reports:       reportSvc,
		PublicBaseURL: cfg.PublicBaseURL,
	})

	go func() {
		logger.Printf("listening on %s (backend=%s)", cfg.HTTPAddr, cfg.Backend)
		if err := srv.Start(); err != nil {
			logger.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config, logger *log.Logger) (store.EntryStore, func(), error) {
	switch cfg.Backend {
	case "sqlite":
		conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
		if err != nil {
			return nil, nil, err
		}
		writer := db.NewWorker(conn)
		if cfg.Env == "dev" {
			if err := db.SeedDev(ctx, conn, db.SeedDevOptions{}); err != nil {
				logger.Printf("seed dev data: %v", err)
			}
		}
		cleanup := func() {
			writer.Close()
			conn.Close()
		}
		return sqlite.NewEntryStore(conn, writer), cleanup, nil
	case "memory":
		return memory.NewEntryStore(), func() {}, nil
	default:
		ledger, err := csvledger.Open(cfg.LedgerPath)
		if err != nil {
			return nil, nil, err
		}
		return ledger, func() {}, nil
	}
}
