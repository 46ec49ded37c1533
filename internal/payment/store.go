package payment

import (
	"context"

	"trafficase/internal/payment/models"
)

// Store is the persistence surface for payment records.
type Store interface {
	// Create persists a new payment and assigns its ID.
	Create(ctx context.Context, payment *models.Payment) error
	// FindByID returns one payment, or sentinel.ErrNotFound.
	FindByID(ctx context.Context, id int64) (*models.Payment, error)
	// FindByOffense returns every payment attached to one offense.
	FindByOffense(ctx context.Context, offenseID int64) ([]models.Payment, error)
	// ListByStatus pages payments in one lifecycle state, newest first.
	ListByStatus(ctx context.Context, status string, page, size int) ([]models.Payment, error)
	// UpdateStatus moves a payment to a new lifecycle state, or returns
	// sentinel.ErrNotFound.
	UpdateStatus(ctx context.Context, id int64, status string) error
	// RecordAmount adds a settled amount to a payment.
	RecordAmount(ctx context.Context, id int64, amount int64) error
}
