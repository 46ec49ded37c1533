package appeal

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficase/internal/idempotency"
	"trafficase/internal/ledger"
	"trafficase/internal/offense"
	dErrors "trafficase/pkg/domain-errors"
	"trafficase/pkg/requestcontext"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture wires an appeal service against a real offense store so the
// appealability check is exercised.
func fixture(t *testing.T) (*Service, offense.Store, int64) {
	t.Helper()
	offenses := offense.NewInMemoryStore()
	guard := idempotency.New(ledger.NewInMemoryStore(), testLogger())
	offenseSvc := offense.NewService(offenses, guard, testLogger())

	created, err := offenseSvc.Create(context.Background(), offense.CreateRequest{
		DriverName:     "Wei Zhang",
		LicensePlate:   "SU-A12345",
		OffenseType:    "SPEEDING",
		FineAmount:     20000,
		DeductedPoints: 3,
		OccurredAt:     time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	svc := NewService(NewInMemoryStore(), guard, testLogger(), WithOffenseDirectory(offenses))
	return svc, offenses, created.Offense.ID
}

func keyedContext(key string) context.Context {
	return requestcontext.WithIdempotencyKey(context.Background(), key)
}

func TestService_Create(t *testing.T) {
	svc, _, offenseID := fixture(t)

	result, err := svc.Create(keyedContext("a-1"), CreateRequest{
		OffenseID:     offenseID,
		AppellantName: "Wei Zhang",
		AppealReason:  "speed camera was miscalibrated",
	})
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, "UNPROCESSED", result.Appeal.ProcessStatus)
	assert.NotZero(t, result.Appeal.ID)
}

func TestService_Create_RepeatedKeyReturnsOriginal(t *testing.T) {
	svc, _, offenseID := fixture(t)
	req := CreateRequest{
		OffenseID:     offenseID,
		AppellantName: "Wei Zhang",
		AppealReason:  "not the driver at the time",
	}

	first, err := svc.Create(keyedContext("a-2"), req)
	require.NoError(t, err)

	second, err := svc.Create(keyedContext("a-2"), req)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Appeal.ID, second.Appeal.ID)
}

func TestService_Create_CompletedReplaySkipsAppealabilityCheck(t *testing.T) {
	svc, offenses, offenseID := fixture(t)
	req := CreateRequest{
		OffenseID:     offenseID,
		AppellantName: "Wei Zhang",
		AppealReason:  "speed camera was miscalibrated",
	}

	first, err := svc.Create(keyedContext("a-replay"), req)
	require.NoError(t, err)

	// Cancelling the offense would make a fresh create fail, but the
	// completed entry is answered from the ledger before that check runs.
	require.NoError(t, offenses.UpdateStatus(context.Background(), offenseID, "CANCELLED"))

	second, err := svc.Create(keyedContext("a-replay"), req)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Appeal.ID, second.Appeal.ID)
}

func TestService_Create_MissingOffense(t *testing.T) {
	svc, _, _ := fixture(t)

	_, err := svc.Create(context.Background(), CreateRequest{
		OffenseID:     999,
		AppellantName: "Wei Zhang",
		AppealReason:  "no such offense",
	})
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeValidation))
}

func TestService_Create_CancelledOffense(t *testing.T) {
	svc, offenses, offenseID := fixture(t)
	require.NoError(t, offenses.UpdateStatus(context.Background(), offenseID, "CANCELLED"))

	_, err := svc.Create(context.Background(), CreateRequest{
		OffenseID:     offenseID,
		AppellantName: "Wei Zhang",
		AppealReason:  "ticket already voided",
	})
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeInvariantViolation))
}

func TestService_Create_Validation(t *testing.T) {
	svc, _, offenseID := fixture(t)

	_, err := svc.Create(context.Background(), CreateRequest{OffenseID: offenseID, AppealReason: "x"})
	assert.True(t, dErrors.Is(err, dErrors.CodeValidation))

	_, err = svc.Create(context.Background(), CreateRequest{OffenseID: offenseID, AppellantName: "Wei Zhang"})
	assert.True(t, dErrors.Is(err, dErrors.CodeValidation))

	_, err = svc.Create(context.Background(), CreateRequest{AppellantName: "Wei Zhang", AppealReason: "x"})
	assert.True(t, dErrors.Is(err, dErrors.CodeValidation))
}

func TestService_Get(t *testing.T) {
	svc, _, offenseID := fixture(t)

	created, err := svc.Create(context.Background(), CreateRequest{
		OffenseID:     offenseID,
		AppellantName: "Wei Zhang",
		AppealReason:  "signage was obscured",
	})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), created.Appeal.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Appeal.AppealReason, got.AppealReason)

	t.Run("missing appeal", func(t *testing.T) {
		_, err := svc.Get(context.Background(), 999)
		assert.True(t, dErrors.Is(err, dErrors.CodeNotFound))
	})

	t.Run("invalid id", func(t *testing.T) {
		_, err := svc.Get(context.Background(), 0)
		assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
	})
}

func TestService_ListByOffense(t *testing.T) {
	svc, _, offenseID := fixture(t)

	for i := 0; i < 2; i++ {
		_, err := svc.Create(context.Background(), CreateRequest{
			OffenseID:     offenseID,
			AppellantName: "Wei Zhang",
			AppealReason:  "supplementary evidence",
		})
		require.NoError(t, err)
	}

	appeals, err := svc.ListByOffense(context.Background(), offenseID)
	require.NoError(t, err)
	assert.Len(t, appeals, 2)
}

func TestService_ListByStatus(t *testing.T) {
	svc, _, offenseID := fixture(t)

	_, err := svc.Create(context.Background(), CreateRequest{
		OffenseID:     offenseID,
		AppellantName: "Wei Zhang",
		AppealReason:  "requesting review",
	})
	require.NoError(t, err)

	appeals, err := svc.ListByStatus(context.Background(), "UNPROCESSED", 1, 20)
	require.NoError(t, err)
	assert.Len(t, appeals, 1)

	t.Run("rejects empty status", func(t *testing.T) {
		_, err := svc.ListByStatus(context.Background(), "", 1, 20)
		assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
	})
}
