package payment

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

// fixture wires a payment service against a real offense store so the
// existence check is exercised.
func fixture(t *testing.T) (*Service, int64) {
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
	return svc, created.Offense.ID
}

func keyedContext(key string) context.Context {
	return requestcontext.WithIdempotencyKey(context.Background(), key)
}

func TestService_Create(t *testing.T) {
	svc, offenseID := fixture(t)

	result, err := svc.Create(keyedContext("p-1"), CreateRequest{
		OffenseID:     offenseID,
		AmountDue:     20000,
		PaymentMethod: "card",
	})
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, "UNPAID", result.Payment.PaymentStatus)
	assert.Equal(t, int64(0), result.Payment.AmountPaid)
}

func TestService_Create_RepeatedKeyReturnsOriginal(t *testing.T) {
	svc, offenseID := fixture(t)
	req := CreateRequest{OffenseID: offenseID, AmountDue: 20000}

	first, err := svc.Create(keyedContext("p-2"), req)
	require.NoError(t, err)

	second, err := svc.Create(keyedContext("p-2"), req)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Payment.ID, second.Payment.ID)
}

func TestService_Create_CompletedReplaySkipsOffenseCheck(t *testing.T) {
	svc, offenseID := fixture(t)

	first, err := svc.Create(keyedContext("p-replay"), CreateRequest{OffenseID: offenseID, AmountDue: 20000})
	require.NoError(t, err)

	// The replay carries a payload that would fail the offense lookup,
	// but a completed entry is answered from the ledger before that runs.
	second, err := svc.Create(keyedContext("p-replay"), CreateRequest{OffenseID: 999, AmountDue: 1})
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Payment.ID, second.Payment.ID)
}

func TestService_Create_MissingOffense(t *testing.T) {
	svc, _ := fixture(t)

	_, err := svc.Create(context.Background(), CreateRequest{OffenseID: 999, AmountDue: 100})
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeValidation))
}

func TestService_Create_Validation(t *testing.T) {
	svc, offenseID := fixture(t)

	_, err := svc.Create(context.Background(), CreateRequest{OffenseID: offenseID, AmountDue: 0})
	assert.True(t, dErrors.Is(err, dErrors.CodeValidation))

	_, err = svc.Create(context.Background(), CreateRequest{OffenseID: 0, AmountDue: 100})
	assert.True(t, dErrors.Is(err, dErrors.CodeValidation))
}

func TestService_RecordAmount(t *testing.T) {
	svc, offenseID := fixture(t)

	created, err := svc.Create(context.Background(), CreateRequest{OffenseID: offenseID, AmountDue: 20000})
	require.NoError(t, err)

	updated, err := svc.RecordAmount(context.Background(), created.Payment.ID, 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), updated.AmountPaid)

	updated, err = svc.RecordAmount(context.Background(), created.Payment.ID, 15000)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), updated.AmountPaid)

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		_, err := svc.RecordAmount(context.Background(), created.Payment.ID, 0)
		assert.True(t, dErrors.Is(err, dErrors.CodeValidation))
	})

	t.Run("missing payment", func(t *testing.T) {
		_, err := svc.RecordAmount(context.Background(), 999, 100)
		assert.True(t, dErrors.Is(err, dErrors.CodeNotFound))
	})
}

func TestService_ListByOffense(t *testing.T) {
	svc, offenseID := fixture(t)

	for i := 0; i < 2; i++ {
		_, err := svc.Create(context.Background(), CreateRequest{OffenseID: offenseID, AmountDue: 100})
		require.NoError(t, err)
	}

	payments, err := svc.ListByOffense(context.Background(), offenseID)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}
