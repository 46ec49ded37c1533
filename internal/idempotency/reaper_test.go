package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficase/internal/ledger"
	"trafficase/pkg/requestcontext"
)

func TestReaper_ReapOnce(t *testing.T) {
	store := ledger.NewInMemoryStore()
	logger := testLogger()
	guard := New(store, logger)

	stale := requestcontext.WithTime(context.Background(), time.Now().Add(-10*time.Minute))
	_, err := guard.CheckAndAdmit(stale, "stale-key")
	require.NoError(t, err)

	fresh := context.Background()
	_, err = guard.CheckAndAdmit(fresh, "fresh-key")
	require.NoError(t, err)

	reaper := NewReaper(store, 5*time.Minute, time.Minute, logger, nil)
	reaper.ReapOnce(context.Background())

	reapedEntry, err := store.FindByKey(context.Background(), "stale-key")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, reapedEntry.BusinessStatus)
	assert.Equal(t, "processing lease expired", reapedEntry.RequestParams)

	liveEntry, err := store.FindByKey(context.Background(), "fresh-key")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusProcessing, liveEntry.BusinessStatus,
		"entries inside the lease must not be touched")
}

func TestReaper_ReapedKeyIsRetryable(t *testing.T) {
	store := ledger.NewInMemoryStore()
	logger := testLogger()
	guard := New(store, logger, WithRetryFailed(true))

	stale := requestcontext.WithTime(context.Background(), time.Now().Add(-time.Hour))
	_, err := guard.CheckAndAdmit(stale, "crashed-key")
	require.NoError(t, err)

	reaper := NewReaper(store, 5*time.Minute, time.Minute, logger, nil)
	reaper.ReapOnce(context.Background())

	decision, err := guard.CheckAndAdmit(context.Background(), "crashed-key")
	require.NoError(t, err)
	assert.Equal(t, Admitted, decision.Admission,
		"a reaped key flows through the normal failed-retry policy")
}

func TestReaper_RunStopsOnCancel(t *testing.T) {
	reaper := NewReaper(ledger.NewInMemoryStore(), time.Minute, time.Millisecond, testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reaper.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after cancel")
	}
}
