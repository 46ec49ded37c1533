package workflow

import (
	"strings"
	"time"

	dErrors "trafficase/pkg/domain-errors"
)

// Kind identifies which lifecycle an entity follows.
type Kind string

const (
	KindOffense Kind = "offense"
	KindPayment Kind = "payment"
	KindAppeal  Kind = "appeal"
)

// ParseKind maps a URL path segment to a Kind. Both singular and plural
// segments are accepted.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "offense", "offenses":
		return KindOffense, nil
	case "payment", "payments":
		return KindPayment, nil
	case "appeal", "appeals":
		return KindAppeal, nil
	default:
		return "", dErrors.New(dErrors.CodeBadRequest, "unknown entity kind: "+raw)
	}
}

// State is a lifecycle status code, e.g. "UNPROCESSED" or "PAID".
type State string

// Event is a lifecycle trigger, e.g. "START_PROCESSING".
type Event string

// Outcome is the result category of a trigger attempt.
type Outcome int

const (
	// Advanced means the transition was defined and the new state persisted.
	Advanced Outcome = iota
	// Rejected means no transition is defined for the (state, event) pair;
	// nothing was written.
	Rejected
)

// EntitySnapshot is the coordinator's view of one lifecycle-managed record.
// It is what transports echo back on both acceptance and rejection.
type EntitySnapshot struct {
	ID        int64
	Kind      Kind
	Status    string
	UpdatedAt time.Time
}

// Result describes one trigger attempt against an entity.
type Result struct {
	Outcome Outcome
	Event   Event
	From    State
	To      State
	Entity  EntitySnapshot
}
