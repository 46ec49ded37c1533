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

	"trafficase/internal/appeal"
	"trafficase/internal/idempotency"
	"trafficase/internal/ledger"
	"trafficase/internal/offense"
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

	svc := appeal.NewService(appeal.NewInMemoryStore(), guard, logger, appeal.WithOffenseDirectory(offenses))

	r := chi.NewRouter()
	r.Use(requestmeta.Middleware)
	New(svc, logger).Register(r)
	return r
}

func validBody() CreateRequest {
	return CreateRequest{
		OffenseID:     1,
		AppellantName: "Wei Zhang",
		AppealReason:  "speed camera was miscalibrated",
	}
}

func submit(t *testing.T, router chi.Router, body CreateRequest, idempotencyKey string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/appeals", body)
	req = testutil.WithIdempotencyKey(req, idempotencyKey)
	return testutil.DoRequest(router, req)
}

func TestHandleCreate(t *testing.T) {
	router := newTestRouter(t)

	rec := submit(t, router, validBody(), "ap-1")
	testutil.AssertStatus(t, rec, http.StatusCreated)

	resp := testutil.UnmarshalResponse[AppealResponse](t, rec)
	require.NotZero(t, resp.ID)
	require.Equal(t, "UNPROCESSED", resp.AppealStatus)
}

func TestHandleCreate_RepeatedKeyAnswersAlreadyReported(t *testing.T) {
	router := newTestRouter(t)

	first := submit(t, router, validBody(), "ap-2")
	testutil.AssertStatus(t, first, http.StatusCreated)
	original := testutil.UnmarshalResponse[AppealResponse](t, first)

	second := submit(t, router, validBody(), "ap-2")
	testutil.AssertStatus(t, second, http.StatusAlreadyReported)
	replay := testutil.UnmarshalResponse[AppealResponse](t, second)
	require.Equal(t, original.ID, replay.ID)
}

func TestHandleCreate_MissingOffense(t *testing.T) {
	router := newTestRouter(t)

	body := validBody()
	body.OffenseID = 999
	rec := submit(t, router, body, "ap-3")
	testutil.AssertStatusAndError(t, rec, http.StatusBadRequest, "validation_error")
}

func TestHandleGet(t *testing.T) {
	router := newTestRouter(t)
	submit(t, router, validBody(), "ap-4")

	rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/appeals/1"))
	testutil.AssertStatusOK(t, rec)
	testutil.AssertJSONContains(t, rec, "appeal_status", "UNPROCESSED")

	t.Run("missing record", func(t *testing.T) {
		rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/appeals/999"))
		testutil.AssertStatusAndError(t, rec, http.StatusNotFound, "not_found")
	})
}

func TestHandleList(t *testing.T) {
	router := newTestRouter(t)
	submit(t, router, validBody(), "")
	submit(t, router, validBody(), "")

	rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/appeals?offense_id=1"))
	testutil.AssertStatusOK(t, rec)

	resp := testutil.UnmarshalResponse[ListResponse](t, rec)
	require.Len(t, resp.Appeals, 2)
}
