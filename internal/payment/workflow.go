package payment

import (
	"context"

	"trafficase/internal/platform/redis"
	"trafficase/internal/workflow"
)

// WorkflowStore adapts the payment store to the coordinator's view. The
// cache may be nil.
type WorkflowStore struct {
	store Store
	cache *redis.Client
}

func NewWorkflowStore(store Store, cache *redis.Client) *WorkflowStore {
	return &WorkflowStore{store: store, cache: cache}
}

func (w *WorkflowStore) FindSnapshot(ctx context.Context, id int64) (*workflow.EntitySnapshot, error) {
	payment, err := w.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &workflow.EntitySnapshot{
		ID:        payment.ID,
		Kind:      workflow.KindPayment,
		Status:    payment.PaymentStatus,
		UpdatedAt: payment.UpdatedAt,
	}, nil
}

func (w *WorkflowStore) UpdateStatus(ctx context.Context, id int64, status string) error {
	if err := w.store.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	_ = w.cache.InvalidatePrefix(ctx, cachePrefix)
	return nil
}
