package models

import (
	"strings"
	"time"

	dErrors "trafficase/pkg/domain-errors"
)

// Offense is one recorded traffic violation. Amounts are in cents.
type Offense struct {
	ID              int64
	DriverName      string
	LicensePlate    string
	OffenseType     string
	OffenseLocation string
	FineAmount      int64
	DeductedPoints  int
	ProcessStatus   string
	OccurredAt      time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewOffense builds a validated offense in its initial lifecycle state.
func NewOffense(driverName, licensePlate, offenseType, location string, fineAmount int64, deductedPoints int, occurredAt, now time.Time) (*Offense, error) {
	driverName = strings.TrimSpace(driverName)
	licensePlate = strings.TrimSpace(licensePlate)
	offenseType = strings.TrimSpace(offenseType)

	if driverName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "driver name is required")
	}
	if licensePlate == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "license plate is required")
	}
	if offenseType == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "offense type is required")
	}
	if fineAmount < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "fine amount must not be negative")
	}
	if deductedPoints < 0 || deductedPoints > 12 {
		return nil, dErrors.New(dErrors.CodeValidation, "deducted points must be between 0 and 12")
	}
	if occurredAt.IsZero() || occurredAt.After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "occurrence time must be in the past")
	}

	return &Offense{
		DriverName:      driverName,
		LicensePlate:    strings.ToUpper(licensePlate),
		OffenseType:     offenseType,
		OffenseLocation: strings.TrimSpace(location),
		FineAmount:      fineAmount,
		DeductedPoints:  deductedPoints,
		ProcessStatus:   "UNPROCESSED",
		OccurredAt:      occurredAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}
