package models

import (
	"strings"
	"time"

	dErrors "trafficase/pkg/domain-errors"
)

// Payment tracks the fine settlement for one offense. Amounts are in cents.
type Payment struct {
	ID            int64
	OffenseID     int64
	AmountDue     int64
	AmountPaid    int64
	PaymentMethod string
	PaymentStatus string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewPayment builds a validated payment in its initial lifecycle state.
func NewPayment(offenseID, amountDue int64, method string, now time.Time) (*Payment, error) {
	if offenseID < 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "offense id is required")
	}
	if amountDue <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "amount due must be positive")
	}

	return &Payment{
		OffenseID:     offenseID,
		AmountDue:     amountDue,
		PaymentMethod: strings.TrimSpace(method),
		PaymentStatus: "UNPAID",
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
