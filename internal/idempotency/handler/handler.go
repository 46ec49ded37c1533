package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"trafficase/internal/ledger"
	dErrors "trafficase/pkg/domain-errors"
	"trafficase/pkg/platform/httputil"
	"trafficase/pkg/requestcontext"
)

// Service defines the ledger query operations the handler needs.
type Service interface {
	Lookup(ctx context.Context, key string) (*ledger.Entry, error)
	ListByStatus(ctx context.Context, status ledger.BusinessStatus, page, size int) ([]ledger.Entry, error)
}

// Handler exposes read-only request ledger endpoints for operators.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a ledger handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts ledger endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/ledger/entries/{key}", h.HandleLookup)
	r.Get("/ledger/entries", h.HandleList)
}

// EntryResponse is the wire shape of one ledger entry.
type EntryResponse struct {
	IdempotencyKey string    `json:"idempotency_key"`
	BusinessStatus string    `json:"business_status"`
	RequestParams  string    `json:"request_params,omitempty"`
	BusinessID     *int64    `json:"business_id,omitempty"`
	Attempts       int       `json:"attempts"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toEntryResponse(e ledger.Entry) EntryResponse {
	return EntryResponse{
		IdempotencyKey: e.IdempotencyKey,
		BusinessStatus: string(e.BusinessStatus),
		RequestParams:  e.RequestParams,
		BusinessID:     e.BusinessID,
		Attempts:       e.Attempts,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

// HandleLookup handles GET /ledger/entries/{key} requests.
func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	entry, err := h.service.Lookup(ctx, key)
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "ledger lookup failed",
				"request_id", requestcontext.RequestID(ctx),
				"idempotency_key", key,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toEntryResponse(*entry))
}

// ListResponse pages ledger entries.
type ListResponse struct {
	Entries []EntryResponse `json:"entries"`
	Page    int             `json:"page"`
	Size    int             `json:"size"`
}

// HandleList handles GET /ledger/entries?status=FAILED&page=1&size=20 requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := ledger.BusinessStatus(r.URL.Query().Get("status"))
	page := queryInt(r, "page", 1)
	size := queryInt(r, "size", 20)

	entries, err := h.service.ListByStatus(ctx, status, page, size)
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeBadRequest) {
			h.logger.ErrorContext(ctx, "ledger list failed",
				"request_id", requestcontext.RequestID(ctx),
				"status", string(status),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	resp := ListResponse{
		Entries: make([]EntryResponse, 0, len(entries)),
		Page:    page,
		Size:    size,
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, toEntryResponse(e))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
