package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"trafficase/internal/offense"
	"trafficase/internal/offense/models"
	dErrors "trafficase/pkg/domain-errors"
	"trafficase/pkg/platform/httputil"
	"trafficase/pkg/requestcontext"
)

// Service defines the offense operations the handler needs.
type Service interface {
	Create(ctx context.Context, req offense.CreateRequest) (*offense.CreateResult, error)
	Get(ctx context.Context, id int64) (*models.Offense, error)
	ListByStatus(ctx context.Context, status string, page, size int) ([]models.Offense, error)
}

// Handler wires offense endpoints to the offense service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an offense handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts offense endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/offenses", h.HandleCreate)
	r.Get("/offenses/{id}", h.HandleGet)
	r.Get("/offenses", h.HandleList)
}

// CreateRequest is the wire shape of a new offense submission.
type CreateRequest struct {
	DriverName      string    `json:"driver_name"`
	LicensePlate    string    `json:"license_plate"`
	OffenseType     string    `json:"offense_type"`
	OffenseLocation string    `json:"offense_location"`
	FineAmount      int64     `json:"fine_amount"`
	DeductedPoints  int       `json:"deducted_points"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// OffenseResponse is the wire shape of one offense record.
type OffenseResponse struct {
	ID              int64     `json:"id"`
	DriverName      string    `json:"driver_name"`
	LicensePlate    string    `json:"license_plate"`
	OffenseType     string    `json:"offense_type"`
	OffenseLocation string    `json:"offense_location,omitempty"`
	FineAmount      int64     `json:"fine_amount"`
	DeductedPoints  int       `json:"deducted_points"`
	ProcessStatus   string    `json:"process_status"`
	OccurredAt      time.Time `json:"occurred_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toOffenseResponse(o *models.Offense) OffenseResponse {
	return OffenseResponse{
		ID:              o.ID,
		DriverName:      o.DriverName,
		LicensePlate:    o.LicensePlate,
		OffenseType:     o.OffenseType,
		OffenseLocation: o.OffenseLocation,
		FineAmount:      o.FineAmount,
		DeductedPoints:  o.DeductedPoints,
		ProcessStatus:   o.ProcessStatus,
		OccurredAt:      o.OccurredAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

// HandleCreate handles POST /offenses requests. A repeated submission with
// the same Idempotency-Key answers 208 with the original record.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[CreateRequest](w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.service.Create(ctx, offense.CreateRequest{
		DriverName:      req.DriverName,
		LicensePlate:    req.LicensePlate,
		OffenseType:     req.OffenseType,
		OffenseLocation: req.OffenseLocation,
		FineAmount:      req.FineAmount,
		DeductedPoints:  req.DeductedPoints,
		OccurredAt:      req.OccurredAt,
	})
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "offense creation failed",
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
	httputil.WriteJSON(w, status, toOffenseResponse(result.Offense))
}

// HandleGet handles GET /offenses/{id} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "offense id must be a positive integer"))
		return
	}

	record, err := h.service.Get(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toOffenseResponse(record))
}

// ListResponse pages offense records.
type ListResponse struct {
	Offenses []OffenseResponse `json:"offenses"`
	Page     int               `json:"page"`
	Size     int               `json:"size"`
}

// HandleList handles GET /offenses?status=UNPROCESSED&page=1&size=20 requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := r.URL.Query().Get("status")
	page := queryInt(r, "page", 1)
	size := queryInt(r, "size", 20)

	records, err := h.service.ListByStatus(ctx, status, page, size)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := ListResponse{
		Offenses: make([]OffenseResponse, 0, len(records)),
		Page:     page,
		Size:     size,
	}
	for i := range records {
		resp.Offenses = append(resp.Offenses, toOffenseResponse(&records[i]))
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
