package idempotency

import (
	"context"
	"log/slog"
	"time"

	"trafficase/internal/idempotency/metrics"
	"trafficase/internal/ledger"
)

// reapReason is stored in the diagnostic slot so reclaimed keys are
// distinguishable from write failures.
const reapReason = "processing lease expired"

// Reaper recovers ledger entries stranded in PROCESSING by a crash between
// admit and mark. An expired entry becomes FAILED, which hands the key to the
// normal FAILED retry policy instead of blocking it forever.
type Reaper struct {
	store    ledger.Store
	lease    time.Duration
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewReaper(store ledger.Store, lease, interval time.Duration, logger *slog.Logger, m *metrics.Metrics) *Reaper {
	return &Reaper{
		store:    store,
		lease:    lease,
		interval: interval,
		logger:   logger,
		metrics:  m,
	}
}

// Run scans on a ticker until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.ReapOnce(ctx)
		}
	}
}

// ReapOnce fails every PROCESSING entry older than the lease. Exposed for
// tests and for a one-shot admin trigger.
func (r *Reaper) ReapOnce(ctx context.Context) {
	now := time.Now()
	reaped, err := r.store.ReapExpired(ctx, now.Add(-r.lease), reapReason, now)
	if err != nil {
		r.logger.ErrorContext(ctx, "ledger reap failed", "error", err)
		return
	}
	if reaped > 0 {
		if r.metrics != nil {
			r.metrics.ReapedEntries.Add(float64(reaped))
		}
		r.logger.InfoContext(ctx, "reaped stuck ledger entries",
			"count", reaped, "lease", r.lease.String())
	}
}
