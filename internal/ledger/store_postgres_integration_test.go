//go:build integration

package ledger_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trafficase/internal/ledger"
	"trafficase/pkg/platform/sentinel"
	"trafficase/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *ledger.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = ledger.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "request_ledger")
	s.Require().NoError(err)
}

// TestConcurrentInsertSingleWinner verifies that racing admissions on one key
// produce exactly one inserted row.
func (s *PostgresStoreSuite) TestConcurrentInsertSingleWinner() {
	ctx := context.Background()
	const goroutines = 50

	var wg sync.WaitGroup
	var inserted atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, won, err := s.store.Insert(ctx, "race-key", time.Now())
			if err != nil {
				return
			}
			if won {
				inserted.Add(1)
			}
			if entry == nil {
				s.T().Error("insert returned no entry")
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), inserted.Load())

	entry, err := s.store.FindByKey(ctx, "race-key")
	s.Require().NoError(err)
	s.Equal(ledger.StatusProcessing, entry.BusinessStatus)
	s.Equal(1, entry.Attempts)
}

func (s *PostgresStoreSuite) TestMarkSuccessRoundTrip() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	_, won, err := s.store.Insert(ctx, "key-success", now)
	s.Require().NoError(err)
	s.Require().True(won)

	updated, err := s.store.MarkSuccess(ctx, "key-success", 42, now.Add(time.Second))
	s.Require().NoError(err)
	s.True(updated)

	entry, err := s.store.FindByKey(ctx, "key-success")
	s.Require().NoError(err)
	s.Equal(ledger.StatusSuccess, entry.BusinessStatus)
	s.Equal(ledger.PhaseDone, entry.RequestParams)
	s.Require().NotNil(entry.BusinessID)
	s.Equal(int64(42), *entry.BusinessID)
	s.True(entry.Completed())
}

func (s *PostgresStoreSuite) TestMarkFailureTruncatesDiagnostic() {
	ctx := context.Background()
	now := time.Now()

	_, _, err := s.store.Insert(ctx, "key-fail", now)
	s.Require().NoError(err)

	long := make([]byte, 800)
	for i := range long {
		long[i] = 'x'
	}
	updated, err := s.store.MarkFailure(ctx, "key-fail", string(long), now)
	s.Require().NoError(err)
	s.True(updated)

	entry, err := s.store.FindByKey(ctx, "key-fail")
	s.Require().NoError(err)
	s.Equal(ledger.StatusFailed, entry.BusinessStatus)
	s.LessOrEqual(len(entry.RequestParams), 500)
}

func (s *PostgresStoreSuite) TestRetryFailedExhaustsBudget() {
	ctx := context.Background()
	now := time.Now()

	_, _, err := s.store.Insert(ctx, "key-retry", now)
	s.Require().NoError(err)
	_, err = s.store.MarkFailure(ctx, "key-retry", "downstream timeout", now)
	s.Require().NoError(err)

	won, err := s.store.RetryFailed(ctx, "key-retry", 2, now)
	s.Require().NoError(err)
	s.True(won)

	entry, err := s.store.FindByKey(ctx, "key-retry")
	s.Require().NoError(err)
	s.Equal(ledger.StatusProcessing, entry.BusinessStatus)
	s.Equal(2, entry.Attempts)

	// Second failure leaves the entry at the attempt ceiling.
	_, err = s.store.MarkFailure(ctx, "key-retry", "downstream timeout", now)
	s.Require().NoError(err)
	won, err = s.store.RetryFailed(ctx, "key-retry", 2, now)
	s.Require().NoError(err)
	s.False(won)
}

func (s *PostgresStoreSuite) TestConcurrentRetrySingleWinner() {
	ctx := context.Background()
	now := time.Now()

	_, _, err := s.store.Insert(ctx, "key-retry-race", now)
	s.Require().NoError(err)
	_, err = s.store.MarkFailure(ctx, "key-retry-race", "flaky dependency", now)
	s.Require().NoError(err)

	const goroutines = 20
	var wg sync.WaitGroup
	var winners atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := s.store.RetryFailed(ctx, "key-retry-race", 2, time.Now())
			if err == nil && won {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), winners.Load())
}

func (s *PostgresStoreSuite) TestReapExpired() {
	ctx := context.Background()
	stale := time.Now().Add(-time.Hour)
	fresh := time.Now()

	_, _, err := s.store.Insert(ctx, "key-stale", stale)
	s.Require().NoError(err)
	_, _, err = s.store.Insert(ctx, "key-fresh", fresh)
	s.Require().NoError(err)

	reaped, err := s.store.ReapExpired(ctx, fresh.Add(-time.Minute), "processing lease expired", fresh)
	s.Require().NoError(err)
	s.Equal(int64(1), reaped)

	staleEntry, err := s.store.FindByKey(ctx, "key-stale")
	s.Require().NoError(err)
	s.Equal(ledger.StatusFailed, staleEntry.BusinessStatus)
	s.Equal("processing lease expired", staleEntry.RequestParams)

	freshEntry, err := s.store.FindByKey(ctx, "key-fresh")
	s.Require().NoError(err)
	s.Equal(ledger.StatusProcessing, freshEntry.BusinessStatus)
}

func (s *PostgresStoreSuite) TestFindByKeyMissing() {
	_, err := s.store.FindByKey(context.Background(), "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListByStatus() {
	ctx := context.Background()
	now := time.Now()

	for _, key := range []string{"l-1", "l-2", "l-3"} {
		_, _, err := s.store.Insert(ctx, key, now)
		s.Require().NoError(err)
	}
	_, err := s.store.MarkFailure(ctx, "l-2", "boom", now)
	s.Require().NoError(err)

	failed, err := s.store.ListByStatus(ctx, ledger.StatusFailed, 1, 20)
	s.Require().NoError(err)
	s.Len(failed, 1)
	s.Equal("l-2", failed[0].IdempotencyKey)

	processing, err := s.store.ListByStatus(ctx, ledger.StatusProcessing, 1, 20)
	s.Require().NoError(err)
	s.Len(processing, 2)
}
