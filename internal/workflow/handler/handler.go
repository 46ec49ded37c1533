package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"trafficase/internal/workflow"
	dErrors "trafficase/pkg/domain-errors"
	"trafficase/pkg/platform/httputil"
	"trafficase/pkg/requestcontext"
)

// Service defines the coordinator operation the handler needs.
type Service interface {
	Trigger(ctx context.Context, kind workflow.Kind, id int64, event workflow.Event) (*workflow.Result, error)
}

// Handler wires lifecycle event endpoints to the workflow coordinator.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a workflow handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts workflow endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/workflow/{entityKind}/{entityID}/events/{eventName}", h.HandleTrigger)
}

// EntityResponse is the wire shape of the entity echoed with every verdict.
type EntityResponse struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TriggerResponse reports the verdict for one lifecycle event.
type TriggerResponse struct {
	Outcome string         `json:"outcome"`
	Event   string         `json:"event"`
	From    string         `json:"from"`
	To      string         `json:"to"`
	Entity  EntityResponse `json:"entity"`
}

// HandleTrigger handles POST /workflow/{entityKind}/{entityID}/events/{eventName}
// requests. A defined transition answers 200; an event the lifecycle defines
// but the current state refuses answers 409 with the unchanged entity.
func (h *Handler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	kind, err := workflow.ParseKind(chi.URLParam(r, "entityKind"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "entityID"), 10, 64)
	if err != nil || id < 1 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "entity id must be a positive integer"))
		return
	}
	event := workflow.Event(chi.URLParam(r, "eventName"))

	result, err := h.service.Trigger(ctx, kind, id, event)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "lifecycle trigger failed",
				"request_id", requestcontext.RequestID(ctx),
				"kind", string(kind),
				"entity_id", id,
				"event", string(event),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	resp := TriggerResponse{
		Event: string(result.Event),
		From:  string(result.From),
		To:    string(result.To),
		Entity: EntityResponse{
			ID:        result.Entity.ID,
			Kind:      string(result.Entity.Kind),
			Status:    result.Entity.Status,
			UpdatedAt: result.Entity.UpdatedAt,
		},
	}

	if result.Outcome == workflow.Rejected {
		resp.Outcome = "rejected"
		httputil.WriteJSON(w, http.StatusConflict, resp)
		return
	}
	resp.Outcome = "advanced"
	httputil.WriteJSON(w, http.StatusOK, resp)
}
