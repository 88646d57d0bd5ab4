// Package reaper removes expired access codes on a fixed interval, so
// codes that are never presented again still leave the store and the audit
// trail still records their expiry.
package reaper

import (
	"context"
	"log"
	"sync"
	"time"

	"gate-control-plane/internal/audit"
	auditdomain "gate-control-plane/internal/audit/domain"
	"gate-control-plane/internal/code"
)

const defaultInterval = 60 * time.Second

// Reaper periodically sweeps the code store. It runs as a background
// goroutine and is safe to stop via its context or the Stop method.
type Reaper struct {
	store    *code.Store
	log      *audit.Log
	interval time.Duration
	logger   *log.Logger
	nowFn    func() time.Time

	// flight enforces single-flight per store: a tick that arrives while
	// a sweep is still running is skipped, never queued.
	flight sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a reaper but does not start it. interval <= 0 selects the
// 60s default.
func New(store *code.Store, auditLog *audit.Log, interval time.Duration, logger *log.Logger) *Reaper {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Reaper{
		store:    store,
		log:      auditLog,
		interval: interval,
		logger:   logger,
		nowFn:    func() time.Time { return time.Now().UTC() },
		done:     make(chan struct{}),
	}
}

// Start begins the background sweep loop. The loop exits when ctx is
// cancelled or Stop is called.
func (r *Reaper) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	go r.loop(ctx)
	r.logger.Printf("reaper started (interval=%s)", r.interval)
}

// Stop signals the reaper to exit and waits for it to finish.
func (r *Reaper) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}

func (r *Reaper) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep removes every code whose window has closed, obtaining the current
// time once for the whole run, and writes one EXPIRED entry per removed
// code. Returns the number of codes removed; a skipped overlapping run
// returns 0.
func (r *Reaper) Sweep(ctx context.Context) int {
	if !r.flight.TryLock() {
		return 0
	}
	defer r.flight.Unlock()

	now := r.nowFn()
	due := r.store.ExpireDue(now)
	for _, entry := range due {
		// The sweep has no request to fail; a lost audit write is logged
		// and the sweep continues.
		if err := r.log.Record(ctx, entry.Owner, entry.Code, auditdomain.ActionExpired); err != nil {
			r.logger.Printf("reaper: audit write failed for code %s: %v", entry.Code, err)
		}
	}
	if len(due) > 0 {
		r.logger.Printf("reaper: removed %d expired code(s)", len(due))
	}
	return len(due)
}
