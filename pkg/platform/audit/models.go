package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose. Categories
// drive retention and downstream routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal significance: recorded
	// offenses, fines waived, appeal verdicts. Long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine activity useful for debugging:
	// duplicate submissions, rejected lifecycle events. Short retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp time.Time
	Action    string
	// Subject identifies the record acted on, e.g. "offense/42".
	Subject string
	// Detail carries action-specific context: the lifecycle event name, a
	// rejection reason, an amount.
	Detail         string
	RequestID      string
	IdempotencyKey string
}

type AuditEvent string

const (
	// Intake events
	EventOffenseRecorded  AuditEvent = "offense_recorded"
	EventPaymentRecorded  AuditEvent = "payment_recorded"
	EventAppealRecorded   AuditEvent = "appeal_recorded"
	EventDuplicateRequest AuditEvent = "duplicate_request"

	// Lifecycle events
	EventLifecycleAdvanced AuditEvent = "lifecycle_advanced"
	EventLifecycleRejected AuditEvent = "lifecycle_rejected"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventOffenseRecorded:   CategoryCompliance,
	EventPaymentRecorded:   CategoryCompliance,
	EventAppealRecorded:    CategoryCompliance,
	EventLifecycleAdvanced: CategoryCompliance,

	EventDuplicateRequest:  CategoryOperations,
	EventLifecycleRejected: CategoryOperations,
}

// Category returns the EventCategory for this audit event. Unknown events
// default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Sink receives batches of audit events from the dispatcher. A sink must
// tolerate redelivery: a batch that errors is retried as a whole.
type Sink interface {
	Publish(ctx context.Context, events []Event) error
	Close() error
}

// Publisher is the emission capability handed to domain services. Emit never
// blocks on downstream persistence.
type Publisher interface {
	Emit(ctx context.Context, event Event)
}

// NopPublisher discards every event. Used when auditing is not configured.
type NopPublisher struct{}

func (NopPublisher) Emit(context.Context, Event) {}
