package appeal

import (
	"context"

	"trafficase/internal/appeal/models"
)

// Store is the persistence surface for appeal records.
type Store interface {
	// Create persists a new appeal and assigns its ID.
	Create(ctx context.Context, appeal *models.Appeal) error
	// FindByID returns one appeal, or sentinel.ErrNotFound.
	FindByID(ctx context.Context, id int64) (*models.Appeal, error)
	// FindByOffense returns every appeal filed against one offense.
	FindByOffense(ctx context.Context, offenseID int64) ([]models.Appeal, error)
	// ListByStatus pages appeals in one lifecycle state, newest first.
	ListByStatus(ctx context.Context, status string, page, size int) ([]models.Appeal, error)
	// UpdateStatus moves an appeal to a new lifecycle state, or returns
	// sentinel.ErrNotFound.
	UpdateStatus(ctx context.Context, id int64, status string) error
}
