package offense

import (
	"context"

	"trafficase/internal/offense/models"
)

// Store is the persistence surface for offense records.
type Store interface {
	// Create persists a new offense and assigns its ID.
	Create(ctx context.Context, offense *models.Offense) error
	// FindByID returns one offense, or sentinel.ErrNotFound.
	FindByID(ctx context.Context, id int64) (*models.Offense, error)
	// ListByStatus pages offenses in one lifecycle state, newest first.
	ListByStatus(ctx context.Context, status string, page, size int) ([]models.Offense, error)
	// UpdateStatus moves an offense to a new lifecycle state, or returns
	// sentinel.ErrNotFound.
	UpdateStatus(ctx context.Context, id int64, status string) error
}
