// Package ledger persists idempotency attempts. One entry exists per
// idempotency key for the lifetime of the system; the entry is the durable
// memory of "this operation already happened".
package ledger

import (
	"strings"
	"time"
)

// BusinessStatus is the outcome of the guarded operation.
type BusinessStatus string

const (
	StatusProcessing BusinessStatus = "PROCESSING"
	StatusSuccess    BusinessStatus = "SUCCESS"
	StatusFailed     BusinessStatus = "FAILED"
)

// Sub-phase markers stored in the request_params column. The column doubles
// as a diagnostic slot: on failure it holds the truncated failure reason
// instead of a phase marker.
const (
	PhasePending = "PENDING"
	PhaseDone    = "DONE"
)

// MaxDiagnosticLen bounds the failure reason stored in request_params.
const MaxDiagnosticLen = 500

// Entry is one idempotency attempt. Keys are never reused and entries are
// never deleted by normal operation.
type Entry struct {
	ID             int64
	IdempotencyKey string
	BusinessStatus BusinessStatus
	// RequestParams holds the sub-phase marker (PENDING/DONE) or, for FAILED
	// entries, the truncated diagnostic message.
	RequestParams string
	// BusinessID identifies the entity the guarded operation produced.
	// Nil until the operation reports it.
	BusinessID *int64
	// Attempts counts admissions for this key: 1 for the original, +1 per
	// allowed retry of a FAILED entry.
	Attempts  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Completed reports whether a prior attempt fully finished: SUCCESS with the
// DONE sub-phase. This is the condition for the fast-path skip.
func (e *Entry) Completed() bool {
	return e != nil &&
		strings.EqualFold(string(e.BusinessStatus), string(StatusSuccess)) &&
		strings.EqualFold(e.RequestParams, PhaseDone)
}

// TruncateDiagnostic caps a failure reason at MaxDiagnosticLen.
func TruncateDiagnostic(reason string) string {
	if len(reason) <= MaxDiagnosticLen {
		return reason
	}
	return reason[:MaxDiagnosticLen]
}
