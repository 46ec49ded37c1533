package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"trafficase/internal/idempotency"
	"trafficase/internal/ledger"
	"trafficase/internal/offense"
	"trafficase/internal/payment"
	"trafficase/pkg/platform/middleware/requestmeta"
	"trafficase/pkg/testutil"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	guard := idempotency.New(ledger.NewInMemoryStore(), logger)

	offenses := offense.NewInMemoryStore()
	offenseSvc := offense.NewService(offenses, guard, logger)
	_, err := offenseSvc.Create(context.Background(), offense.CreateRequest{
		DriverName:     "Wei Zhang",
		LicensePlate:   "SU-A12345",
		OffenseType:    "SPEEDING",
		FineAmount:     20000,
		DeductedPoints: 3,
		OccurredAt:     time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	svc := payment.NewService(payment.NewInMemoryStore(), guard, logger, payment.WithOffenseDirectory(offenses))

	r := chi.NewRouter()
	r.Use(requestmeta.Middleware)
	New(svc, logger).Register(r)
	return r
}

func submit(t *testing.T, router chi.Router, body CreateRequest, idempotencyKey string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/payments", body)
	req = testutil.WithIdempotencyKey(req, idempotencyKey)
	return testutil.DoRequest(router, req)
}

func validBody() CreateRequest {
	return CreateRequest{OffenseID: 1, AmountDue: 20000, PaymentMethod: "card"}
}

func TestHandleCreate(t *testing.T) {
	router := newTestRouter(t)

	rec := submit(t, router, validBody(), "pay-1")
	testutil.AssertStatus(t, rec, http.StatusCreated)

	resp := testutil.UnmarshalResponse[PaymentResponse](t, rec)
	require.NotZero(t, resp.ID)
	require.Equal(t, "UNPAID", resp.PaymentStatus)
}

func TestHandleCreate_RepeatedKeyAnswersAlreadyReported(t *testing.T) {
	router := newTestRouter(t)

	first := submit(t, router, validBody(), "pay-2")
	testutil.AssertStatus(t, first, http.StatusCreated)
	original := testutil.UnmarshalResponse[PaymentResponse](t, first)

	second := submit(t, router, validBody(), "pay-2")
	testutil.AssertStatus(t, second, http.StatusAlreadyReported)
	replay := testutil.UnmarshalResponse[PaymentResponse](t, second)
	require.Equal(t, original.ID, replay.ID)
}

func TestHandleRecordAmount(t *testing.T) {
	router := newTestRouter(t)
	submit(t, router, validBody(), "pay-3")

	req := testutil.NewJSONRequest(t, http.MethodPost, "/payments/1/amounts", AmountRequest{Amount: 5000})
	rec := testutil.DoRequest(router, req)
	testutil.AssertStatusOK(t, rec)

	resp := testutil.UnmarshalResponse[PaymentResponse](t, rec)
	require.Equal(t, int64(5000), resp.AmountPaid)

	t.Run("rejects non-positive amount", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/payments/1/amounts", AmountRequest{Amount: 0})
		rec := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rec, http.StatusBadRequest, "validation_error")
	})

	t.Run("missing payment", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/payments/999/amounts", AmountRequest{Amount: 100})
		rec := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rec, http.StatusNotFound, "not_found")
	})
}

func TestHandleList_ByOffense(t *testing.T) {
	router := newTestRouter(t)
	submit(t, router, validBody(), "")
	submit(t, router, validBody(), "")

	rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/payments?offense_id=1"))
	testutil.AssertStatusOK(t, rec)

	resp := testutil.UnmarshalResponse[ListResponse](t, rec)
	require.Len(t, resp.Payments, 2)
}
