package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"trafficase/internal/payment"
	"trafficase/internal/payment/models"
	dErrors "trafficase/pkg/domain-errors"
	"trafficase/pkg/platform/httputil"
	"trafficase/pkg/requestcontext"
)

// Service defines the payment operations the handler needs.
type Service interface {
	Create(ctx context.Context, req payment.CreateRequest) (*payment.CreateResult, error)
	RecordAmount(ctx context.Context, id, amount int64) (*models.Payment, error)
	Get(ctx context.Context, id int64) (*models.Payment, error)
	ListByOffense(ctx context.Context, offenseID int64) ([]models.Payment, error)
	ListByStatus(ctx context.Context, status string, page, size int) ([]models.Payment, error)
}

// Handler wires payment endpoints to the payment service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a payment handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts payment endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/payments", h.HandleCreate)
	r.Post("/payments/{id}/amounts", h.HandleRecordAmount)
	r.Get("/payments/{id}", h.HandleGet)
	r.Get("/payments", h.HandleList)
}

// CreateRequest is the wire shape of a new payment submission.
type CreateRequest struct {
	OffenseID     int64  `json:"offense_id"`
	AmountDue     int64  `json:"amount_due"`
	PaymentMethod string `json:"payment_method"`
}

// AmountRequest books a settled amount against a payment.
type AmountRequest struct {
	Amount int64 `json:"amount"`
}

// PaymentResponse is the wire shape of one payment record.
type PaymentResponse struct {
	ID            int64     `json:"id"`
	OffenseID     int64     `json:"offense_id"`
	AmountDue     int64     `json:"amount_due"`
	AmountPaid    int64     `json:"amount_paid"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	PaymentStatus string    `json:"payment_status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toPaymentResponse(p *models.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		OffenseID:     p.OffenseID,
		AmountDue:     p.AmountDue,
		AmountPaid:    p.AmountPaid,
		PaymentMethod: p.PaymentMethod,
		PaymentStatus: p.PaymentStatus,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// HandleCreate handles POST /payments requests. A repeated submission with
// the same Idempotency-Key answers 208 with the original record.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[CreateRequest](w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.service.Create(ctx, payment.CreateRequest{
		OffenseID:     req.OffenseID,
		AmountDue:     req.AmountDue,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "payment creation failed",
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
	httputil.WriteJSON(w, status, toPaymentResponse(result.Payment))
}

// HandleRecordAmount handles POST /payments/{id}/amounts requests.
func (h *Handler) HandleRecordAmount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "payment id must be a positive integer"))
		return
	}
	req, ok := httputil.Decode[AmountRequest](w, r, h.logger)
	if !ok {
		return
	}

	record, err := h.service.RecordAmount(ctx, id, req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPaymentResponse(record))
}

// HandleGet handles GET /payments/{id} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "payment id must be a positive integer"))
		return
	}

	record, err := h.service.Get(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPaymentResponse(record))
}

// ListResponse pages payment records.
type ListResponse struct {
	Payments []PaymentResponse `json:"payments"`
	Page     int               `json:"page"`
	Size     int               `json:"size"`
}

// HandleList handles GET /payments?status=UNPAID&page=1&size=20 and
// GET /payments?offense_id=7 requests.
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

func writeList(w http.ResponseWriter, records []models.Payment, page, size int) {
	resp := ListResponse{
		Payments: make([]PaymentResponse, 0, len(records)),
		Page:     page,
		Size:     size,
	}
	for i := range records {
		resp.Payments = append(resp.Payments, toPaymentResponse(&records[i]))
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
