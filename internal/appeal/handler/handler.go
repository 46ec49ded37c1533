package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"trafficase/internal/appeal"
	"trafficase/internal/appeal/models"
	dErrors "trafficase/pkg/domain-errors"
	"trafficase/pkg/platform/httputil"
	"trafficase/pkg/requestcontext"
)

// Service defines the appeal operations the handler needs.
type Service interface {
	Create(ctx context.Context, req appeal.CreateRequest) (*appeal.CreateResult, error)
	Get(ctx context.Context, id int64) (*models.Appeal, error)
	ListByOffense(ctx context.Context, offenseID int64) ([]models.Appeal, error)
	ListByStatus(ctx context.Context, status string, page, size int) ([]models.Appeal, error)
}

// Handler wires appeal endpoints to the appeal service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an appeal handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts appeal endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/appeals", h.HandleCreate)
	r.Get("/appeals/{id}", h.HandleGet)
	r.Get("/appeals", h.HandleList)
}

// CreateRequest is the wire shape of a new appeal submission.
type CreateRequest struct {
	OffenseID     int64  `json:"offense_id"`
	AppellantName string `json:"appellant_name"`
	AppealReason  string `json:"appeal_reason"`
}

// AppealResponse is the wire shape of one appeal record.
type AppealResponse struct {
	ID            int64     `json:"id"`
	OffenseID     int64     `json:"offense_id"`
	AppellantName string    `json:"appellant_name"`
	AppealReason  string    `json:"appeal_reason"`
	AppealStatus  string    `json:"appeal_status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toAppealResponse(a *models.Appeal) AppealResponse {
	return AppealResponse{
		ID:            a.ID,
		OffenseID:     a.OffenseID,
		AppellantName: a.AppellantName,
		AppealReason:  a.AppealReason,
		AppealStatus:  a.ProcessStatus,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// HandleCreate handles POST /appeals requests. A repeated submission with
// the same Idempotency-Key answers 208 with the original record.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[CreateRequest](w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.service.Create(ctx, appeal.CreateRequest{
		OffenseID:     req.OffenseID,
		AppellantName: req.AppellantName,
		AppealReason:  req.AppealReason,
	})
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "appeal creation failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusAlreadyReported
	}
	httputil.WriteJSON(w, status, toAppealResponse(result.Appeal))
}

// HandleGet handles GET /appeals/{id} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "appeal id must be a positive integer"))
		return
	}

	record, err := h.service.Get(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAppealResponse(record))
}

// ListResponse pages appeal records.
type ListResponse struct {
	Appeals []AppealResponse `json:"appeals"`
	Page    int              `json:"page"`
	Size    int              `json:"size"`
}

// HandleList handles GET /appeals?status=UNDER_REVIEW&page=1&size=20 and
// GET /appeals?offense_id=7 requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if raw := r.URL.Query().Get("offense_id"); raw != "" {
		offenseID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "offense_id must be a positive integer"))
			return
		}
		records, err := h.service.ListByOffense(ctx, offenseID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		writeList(w, records, 1, len(records))
		return
	}

	status := r.URL.Query().Get("status")
	page := queryInt(r, "page", 1)
	size := queryInt(r, "size", 20)

	records, err := h.service.ListByStatus(ctx, status, page, size)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeList(w, records, page, size)
}

func writeList(w http.ResponseWriter, records []models.Appeal, page, size int) {
	resp := ListResponse{
		Appeals: make([]AppealResponse, 0, len(records)),
		Page:    page,
		Size:    size,
	}
	for i := range records {
		resp.Appeals = append(resp.Appeals, toAppealResponse(&records[i]))
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
