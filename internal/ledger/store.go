package ledger

import (
	"context"
	"time"
)

// Store is the persistence port for the request ledger. The postgres
// implementation relies on the unique constraint on idempotency_key as the
// true concurrency arbiter; the memory implementation serializes on a mutex.
type Store interface {
	// Insert atomically records a PROCESSING entry for key. If an entry
	// already exists the insert is skipped and the existing entry is
	// returned with inserted == false. Exactly one concurrent caller
	// observes inserted == true.
	Insert(ctx context.Context, key string, now time.Time) (entry *Entry, inserted bool, err error)

	// FindByKey returns the entry for key or sentinel.ErrNotFound.
	FindByKey(ctx context.Context, key string) (*Entry, error)

	// MarkSuccess records a completed attempt: SUCCESS, phase DONE, business
	// id. Returns false when no entry exists for key.
	MarkSuccess(ctx context.Context, key string, businessID int64, now time.Time) (bool, error)

	// MarkFailure records a failed attempt with a truncated diagnostic.
	// Returns false when no entry exists for key.
	MarkFailure(ctx context.Context, key, reason string, now time.Time) (bool, error)

	// RetryFailed atomically flips a FAILED entry back to PROCESSING when its
	// attempt count is below maxAttempts. Exactly one concurrent caller wins;
	// the rest observe false.
	RetryFailed(ctx context.Context, key string, maxAttempts int, now time.Time) (bool, error)

	// ListByStatus returns a page of entries with the given status ordered by
	// updated_at descending. Page numbering starts at 1.
	ListByStatus(ctx context.Context, status BusinessStatus, page, size int) ([]Entry, error)

	// ReapExpired marks PROCESSING entries last updated before cutoff as
	// FAILED with the given reason, returning how many were reaped.
	ReapExpired(ctx context.Context, cutoff time.Time, reason string, now time.Time) (int64, error)
}
