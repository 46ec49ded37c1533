// Package idempotency wraps mutating operations with ledger-backed
// at-most-once admission control. The guard decides; the calling service owns
// the actual write and reports the outcome back through MarkSuccess or
// MarkFailure.
package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"trafficase/internal/idempotency/metrics"
	"trafficase/internal/ledger"
	dErrors "trafficase/pkg/domain-errors"
	"trafficase/pkg/platform/sentinel"
	"trafficase/pkg/requestcontext"
)

// Admission is the guard's verdict for one idempotency key.
type Admission int

const (
	// Admitted means no completed or in-flight attempt exists; the caller
	// must proceed with the write and then mark the outcome.
	Admitted Admission = iota
	// Duplicate means a prior attempt owns this key; the caller must not
	// re-execute the write.
	Duplicate
)

// Decision carries the verdict plus the ledger entry backing it. For
// Admitted the entry is the freshly inserted (or re-admitted) PROCESSING
// record; for Duplicate it is the prior attempt, whose BusinessID lets the
// transport answer 208 with the original result.
type Decision struct {
	Admission Admission
	Entry     *ledger.Entry
}

// maxAttempts caps total admissions per key when FAILED retries are allowed:
// the original attempt plus exactly one retry.
const maxAttempts = 2

// Guard is the admission controller. It never re-invokes a wrapped write: the
// ledger's unique key constraint is the arbiter, and the guard's pre-checks
// are an optimization on top of it.
type Guard struct {
	store       ledger.Store
	logger      *slog.Logger
	metrics     *metrics.Metrics
	retryFailed bool
}

// Option configures the Guard.
type Option func(*Guard)

// WithRetryFailed controls the FAILED-entry policy. When enabled, a retry of
// a FAILED key atomically flips it back to PROCESSING exactly once; when
// disabled, FAILED entries permanently block their key.
func WithRetryFailed(allow bool) Option {
	return func(g *Guard) { g.retryFailed = allow }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

// New constructs a Guard. retryFailed defaults to true per the recovery
// policy: one retry after a transient failure instead of livelocking the
// client.
func New(store ledger.Store, logger *slog.Logger, opts ...Option) *Guard {
	g := &Guard{
		store:       store,
		logger:      logger,
		retryFailed: true,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckAndAdmit atomically tests-and-inserts a PROCESSING entry for key.
// Blank keys are a validation error and never reach the ledger.
func (g *Guard) CheckAndAdmit(ctx context.Context, key string) (*Decision, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "idempotency key must not be blank")
	}

	now := requestcontext.Now(ctx)
	entry, inserted, err := g.store.Insert(ctx, key, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record idempotency attempt")
	}
	if inserted {
		g.countAdmitted()
		return &Decision{Admission: Admitted, Entry: entry}, nil
	}

	if entry.BusinessStatus == ledger.StatusFailed && g.retryFailed {
		won, err := g.store.RetryFailed(ctx, key, maxAttempts, now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to retry idempotency attempt")
		}
		if won {
			g.countRetry()
			refreshed, err := g.store.FindByKey(ctx, key)
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reload idempotency attempt")
			}
			return &Decision{Admission: Admitted, Entry: refreshed}, nil
		}
	}

	g.logger.WarnContext(ctx, "duplicate request detected",
		"idempotency_key", key,
		"business_status", entry.BusinessStatus,
	)
	g.countDuplicate()
	return &Decision{Admission: Duplicate, Entry: entry}, nil
}

// ShouldSkipProcessing is the fast-path check a create service runs before
// doing any work: true only for a fully completed prior attempt (SUCCESS and
// DONE).
func (g *Guard) ShouldSkipProcessing(ctx context.Context, key string) (bool, error) {
	if strings.TrimSpace(key) == "" {
		return false, nil
	}
	entry, err := g.store.FindByKey(ctx, key)
	if err != nil {
		if sentinelNotFound(err) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check idempotency key")
	}
	return entry.Completed(), nil
}

// Lookup returns the ledger entry for key, or sentinel.ErrNotFound wrapped as
// a not-found domain error.
func (g *Guard) Lookup(ctx context.Context, key string) (*ledger.Entry, error) {
	entry, err := g.store.FindByKey(ctx, key)
	if err != nil {
		if sentinelNotFound(err) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no attempt recorded for idempotency key")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up idempotency key")
	}
	return entry, nil
}

// ListByStatus pages ledger entries by business status, newest first.
func (g *Guard) ListByStatus(ctx context.Context, status ledger.BusinessStatus, page, size int) ([]ledger.Entry, error) {
	switch status {
	case ledger.StatusProcessing, ledger.StatusSuccess, ledger.StatusFailed:
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown business status")
	}
	if page < 1 || size < 1 || size > 200 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "page must be >= 1 and size in [1,200]")
	}
	entries, err := g.store.ListByStatus(ctx, status, page, size)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list ledger entries")
	}
	return entries, nil
}

// MarkSuccess records the completed attempt. A missing entry is logged and
// ignored, because a crash between admit and mark-success must not turn a
// retry-of-retry into a hard failure. A store error is returned so a caller
// marking inside a transaction aborts the commit instead of landing a record
// whose ledger entry is still PROCESSING.
func (g *Guard) MarkSuccess(ctx context.Context, key string, businessID int64) error {
	found, err := g.store.MarkSuccess(ctx, key, businessID, requestcontext.Now(ctx))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark ledger success")
	}
	if !found {
		g.countMissing()
		g.logger.WarnContext(ctx, "cannot mark success for missing idempotency key",
			"idempotency_key", key)
	}
	return nil
}

// MarkFailure records the failed attempt with a truncated diagnostic. The
// entry remains so a later request with the same key sees FAILED and the
// retry policy applies.
func (g *Guard) MarkFailure(ctx context.Context, key, reason string) {
	found, err := g.store.MarkFailure(ctx, key, reason, requestcontext.Now(ctx))
	if err != nil {
		g.logger.ErrorContext(ctx, "failed to mark ledger failure",
			"idempotency_key", key, "error", err)
		return
	}
	if !found {
		g.countMissing()
		g.logger.WarnContext(ctx, "cannot mark failure for missing idempotency key",
			"idempotency_key", key)
		return
	}
	g.countFailed()
}

func sentinelNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}

func (g *Guard) countAdmitted() {
	if g.metrics != nil {
		g.metrics.Admitted.Inc()
	}
}

func (g *Guard) countDuplicate() {
	if g.metrics != nil {
		g.metrics.Duplicates.Inc()
	}
}

func (g *Guard) countRetry() {
	if g.metrics != nil {
		g.metrics.FailedRetries.Inc()
	}
}

func (g *Guard) countFailed() {
	if g.metrics != nil {
		g.metrics.MarkedFailed.Inc()
	}
}

func (g *Guard) countMissing() {
	if g.metrics != nil {
		g.metrics.MissingOnMark.Inc()
	}
}
