package service

import (
	"context"
	"log"
	"time"

	"gatelog/internal/gatelog/store"
)

// OpenEntryAuditor periodically scans the ledger for entries that have been
// open longer than a configurable threshold and reports them for the
// operator — a missed exit detection or a vehicle genuinely parked
// overnight. It only ever reads: the ledger's history is append-only and
// closing an entry is a real-world event, not the auditor's call.
//
// A threshold of 0 disables the auditor entirely.
type OpenEntryAuditor struct {
	entries   store.EntryStore
	threshold time.Duration
	interval  time.Duration
	logger    *log.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

// AuditorConfig holds the parameters for NewOpenEntryAuditor.
type AuditorConfig struct {
	// AlertHours is how long an entry may stay open before it is flagged.
	// 0 disables the auditor.
	AlertHours int

	// IntervalMinutes is how often the scan runs. Defaults to 30.
	IntervalMinutes int
}

// NewOpenEntryAuditor creates an auditor but does not start it.
func NewOpenEntryAuditor(entries store.EntryStore, cfg AuditorConfig, logger *log.Logger) *OpenEntryAuditor {
	interval := time.Duration(cfg.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	return &OpenEntryAuditor{
		entries:   entries,
		threshold: time.Duration(cfg.AlertHours) * time.Hour,
		interval:  interval,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start begins the background scan loop: one immediate scan, then one per
// interval, until ctx is cancelled or Stop is called.
func (a *OpenEntryAuditor) Start(ctx context.Context) {
	if a.threshold <= 0 {
		a.logger.Printf("open-entry auditor disabled (alert threshold=0)")
		close(a.done)
		return
	}

	ctx, a.cancel = context.WithCancel(ctx)

	go a.loop(ctx)

	a.logger.Printf("open-entry auditor started (threshold=%s, interval=%s)",
		a.threshold, a.interval)
}

// Stop signals the auditor to exit and waits for it to finish.
func (a *OpenEntryAuditor) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	<-a.done
}

func (a *OpenEntryAuditor) loop(ctx context.Context) {
	defer close(a.done)

	a.scan(ctx)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.scan(ctx)
		}
	}
}

func (a *OpenEntryAuditor) scan(ctx context.Context) {
	records, err := a.entries.ListEntries(ctx)
	if err != nil {
		a.logger.Printf("open-entry audit error: %v", err)
		return
	}

	cutoff := time.Now().UTC().Add(-a.threshold)
	for _, rec := range records {
		if rec.Open() && rec.InTime.Before(cutoff) {
			a.logger.Printf("open-entry audit: vehicle %s inside since %s (over %s)",
				rec.VehicleNo, rec.InTime.Format(time.RFC3339), a.threshold)
		}
	}
}
