package workflow

//go:generate mockgen -source=coordinator.go -destination=mocks/mocks.go -package=mocks StatusStore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"trafficase/internal/workflow/metrics"
	dErrors "trafficase/pkg/domain-errors"
	"trafficase/pkg/platform/audit"
	"trafficase/pkg/platform/sentinel"
	"trafficase/pkg/platform/tx"
	"trafficase/pkg/requestcontext"
)

// StatusStore is the per-kind persistence surface the coordinator drives. The
// entity modules adapt their own stores to it.
type StatusStore interface {
	// FindSnapshot loads the lifecycle view of one record, locking the row
	// when called inside a transaction. Missing records return
	// sentinel.ErrNotFound.
	FindSnapshot(ctx context.Context, id int64) (*EntitySnapshot, error)
	// UpdateStatus persists a new status code and bumps the record's
	// updated-at timestamp.
	UpdateStatus(ctx context.Context, id int64, status string) error
}

// Coordinator runs lifecycle events against stored entities. Each trigger is
// a row-scoped read-modify-write: rejected events never touch storage.
type Coordinator struct {
	engine  *Engine
	stores  map[Kind]StatusStore
	runner  tx.Runner
	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor audit.Publisher
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithAuditPublisher enables lifecycle audit events.
func WithAuditPublisher(pub audit.Publisher) Option {
	return func(c *Coordinator) { c.auditor = pub }
}

// NewCoordinator wires the engine to one status store per kind.
func NewCoordinator(engine *Engine, stores map[Kind]StatusStore, runner tx.Runner, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Coordinator {
	c := &Coordinator{
		engine:  engine,
		stores:  stores,
		runner:  runner,
		logger:  logger,
		metrics: m,
		auditor: audit.NopPublisher{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Trigger applies event to the entity identified by (kind, id).
//
// Unknown events for the kind are a bad request. A defined event that is not
// legal from the entity's current state yields a Rejected result carrying the
// unchanged entity; only a defined transition writes the new status.
func (c *Coordinator) Trigger(ctx context.Context, kind Kind, id int64, event Event) (*Result, error) {
	table, ok := c.engine.Table(kind)
	if !ok {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown entity kind: "+string(kind))
	}
	store, ok := c.stores[kind]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInternal, "no store registered for kind: "+string(kind))
	}
	if !table.KnowsEvent(event) {
		return nil, dErrors.New(dErrors.CodeBadRequest,
			"event "+string(event)+" is not part of the "+string(kind)+" lifecycle")
	}

	var result *Result
	err := c.runner.RunInTx(ctx, func(txCtx context.Context) error {
		snapshot, err := store.FindSnapshot(txCtx, id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				c.countNotFound()
				return dErrors.New(dErrors.CodeNotFound, string(kind)+" record not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load "+string(kind)+" record")
		}

		from, _ := c.engine.Resolve(kind, snapshot.Status)
		to, defined := table.Next(from, event)
		if !defined {
			c.logger.InfoContext(txCtx, "lifecycle event rejected",
				"request_id", requestcontext.RequestID(txCtx),
				"kind", string(kind),
				"entity_id", id,
				"event", string(event),
				"status", string(from),
			)
			c.countRejection(kind, event)
			result = &Result{Outcome: Rejected, Event: event, From: from, To: from, Entity: *snapshot}
			return nil
		}

		if err := store.UpdateStatus(txCtx, id, string(to)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist "+string(kind)+" status")
		}

		updated := *snapshot
		updated.Status = string(to)
		updated.UpdatedAt = requestcontext.Now(txCtx)

		c.logger.InfoContext(txCtx, "lifecycle event applied",
			"request_id", requestcontext.RequestID(txCtx),
			"kind", string(kind),
			"entity_id", id,
			"event", string(event),
			"from", string(from),
			"to", string(to),
		)
		c.countTransition(kind, event)
		result = &Result{Outcome: Advanced, Event: event, From: from, To: to, Entity: updated}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.emitAudit(ctx, kind, id, result)
	return result, nil
}

// emitAudit records the verdict after the transaction has settled, so the
// trail never mentions a write that rolled back.
func (c *Coordinator) emitAudit(ctx context.Context, kind Kind, id int64, result *Result) {
	action := audit.EventLifecycleAdvanced
	detail := fmt.Sprintf("%s: %s to %s", result.Event, result.From, result.To)
	if result.Outcome == Rejected {
		action = audit.EventLifecycleRejected
		detail = fmt.Sprintf("%s refused in %s", result.Event, result.From)
	}
	c.auditor.Emit(ctx, audit.Event{
		Action:  string(action),
		Subject: fmt.Sprintf("%s/%d", kind, id),
		Detail:  detail,
	})
}

func (c *Coordinator) countTransition(kind Kind, event Event) {
	if c.metrics != nil {
		c.metrics.Transitions.WithLabelValues(string(kind), string(event)).Inc()
	}
}

func (c *Coordinator) countRejection(kind Kind, event Event) {
	if c.metrics != nil {
		c.metrics.Rejections.WithLabelValues(string(kind), string(event)).Inc()
	}
}

func (c *Coordinator) countNotFound() {
	if c.metrics != nil {
		c.metrics.NotFound.Inc()
	}
}
