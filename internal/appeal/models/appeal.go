package models

import (
	"strings"
	"time"

	dErrors "trafficase/pkg/domain-errors"
)

// Appeal is one driver's challenge against a recorded offense.
type Appeal struct {
	ID            int64
	OffenseID     int64
	AppellantName string
	AppealReason  string
	ProcessStatus string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewAppeal builds a validated appeal in its initial lifecycle state.
func NewAppeal(offenseID int64, appellantName, reason string, now time.Time) (*Appeal, error) {
	appellantName = strings.TrimSpace(appellantName)
	reason = strings.TrimSpace(reason)

	if offenseID < 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "offense id is required")
	}
	if appellantName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "appellant name is required")
	}
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "appeal reason is required")
	}

	return &Appeal{
		OffenseID:     offenseID,
		AppellantName: appellantName,
		AppealReason:  reason,
		ProcessStatus: "UNPROCESSED",
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
