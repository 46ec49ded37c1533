package workflow_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"trafficase/internal/workflow"
	"trafficase/internal/workflow/mocks"
	dErrors "trafficase/pkg/domain-errors"
	"trafficase/pkg/platform/sentinel"
	"trafficase/pkg/platform/tx"
)

func newCoordinator(t *testing.T) (*workflow.Coordinator, *mocks.MockStatusStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStatusStore(ctrl)

	coordinator := workflow.NewCoordinator(
		workflow.NewEngine(workflow.Tables()),
		map[workflow.Kind]workflow.StatusStore{workflow.KindOffense: store},
		tx.NoopRunner{},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		nil,
	)
	return coordinator, store
}

func snapshot(id int64, status string) *workflow.EntitySnapshot {
	return &workflow.EntitySnapshot{
		ID:        id,
		Kind:      workflow.KindOffense,
		Status:    status,
		UpdatedAt: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestCoordinator_Trigger_Advances(t *testing.T) {
	coordinator, store := newCoordinator(t)
	ctx := context.Background()

	store.EXPECT().FindSnapshot(gomock.Any(), int64(10)).Return(snapshot(10, "UNPROCESSED"), nil)
	store.EXPECT().UpdateStatus(gomock.Any(), int64(10), "PROCESSING").Return(nil)

	result, err := coordinator.Trigger(ctx, workflow.KindOffense, 10, workflow.EventStartProcessing)
	require.NoError(t, err)
	assert.Equal(t, workflow.Advanced, result.Outcome)
	assert.Equal(t, workflow.OffenseUnprocessed, result.From)
	assert.Equal(t, workflow.OffenseProcessing, result.To)
	assert.Equal(t, "PROCESSING", result.Entity.Status)
}

func TestCoordinator_Trigger_RejectionWritesNothing(t *testing.T) {
	coordinator, store := newCoordinator(t)
	ctx := context.Background()

	// No UpdateStatus expectation: any write would fail the test.
	store.EXPECT().FindSnapshot(gomock.Any(), int64(10)).Return(snapshot(10, "UNPROCESSED"), nil)

	result, err := coordinator.Trigger(ctx, workflow.KindOffense, 10, workflow.EventCompleteProcessing)
	require.NoError(t, err)
	assert.Equal(t, workflow.Rejected, result.Outcome)
	assert.Equal(t, workflow.OffenseUnprocessed, result.From)
	assert.Equal(t, workflow.OffenseUnprocessed, result.To)
	assert.Equal(t, "UNPROCESSED", result.Entity.Status, "rejection echoes the unchanged entity")
}

func TestCoordinator_Trigger_TerminalStateRejectsEverything(t *testing.T) {
	coordinator, store := newCoordinator(t)
	ctx := context.Background()

	store.EXPECT().FindSnapshot(gomock.Any(), int64(3)).Return(snapshot(3, "CANCELLED"), nil).Times(2)

	for _, event := range []workflow.Event{workflow.EventStartProcessing, workflow.EventCancel} {
		result, err := coordinator.Trigger(ctx, workflow.KindOffense, 3, event)
		require.NoError(t, err)
		assert.Equal(t, workflow.Rejected, result.Outcome)
	}
}

func TestCoordinator_Trigger_UnknownStoredStatusFallsBackToInitial(t *testing.T) {
	coordinator, store := newCoordinator(t)
	ctx := context.Background()

	store.EXPECT().FindSnapshot(gomock.Any(), int64(7)).Return(snapshot(7, "MIGRATED_ROW"), nil)
	store.EXPECT().UpdateStatus(gomock.Any(), int64(7), "PROCESSING").Return(nil)

	result, err := coordinator.Trigger(ctx, workflow.KindOffense, 7, workflow.EventStartProcessing)
	require.NoError(t, err)
	assert.Equal(t, workflow.Advanced, result.Outcome)
	assert.Equal(t, workflow.OffenseUnprocessed, result.From)
}

func TestCoordinator_Trigger_EntityNotFound(t *testing.T) {
	coordinator, store := newCoordinator(t)

	store.EXPECT().FindSnapshot(gomock.Any(), int64(404)).Return(nil, sentinel.ErrNotFound)

	_, err := coordinator.Trigger(context.Background(), workflow.KindOffense, 404, workflow.EventCancel)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeNotFound))
}

func TestCoordinator_Trigger_UnknownEvent(t *testing.T) {
	coordinator, _ := newCoordinator(t)

	// The store must not even be consulted for an event outside the lifecycle.
	_, err := coordinator.Trigger(context.Background(), workflow.KindOffense, 1, workflow.Event("EXPLODE"))
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
}

func TestCoordinator_Trigger_UnknownKind(t *testing.T) {
	coordinator, _ := newCoordinator(t)

	_, err := coordinator.Trigger(context.Background(), workflow.Kind("vehicle"), 1, workflow.EventCancel)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
}

func TestCoordinator_Trigger_WriteFailurePropagates(t *testing.T) {
	coordinator, store := newCoordinator(t)

	store.EXPECT().FindSnapshot(gomock.Any(), int64(5)).Return(snapshot(5, "UNPROCESSED"), nil)
	store.EXPECT().UpdateStatus(gomock.Any(), int64(5), "PROCESSING").Return(errors.New("connection reset"))

	_, err := coordinator.Trigger(context.Background(), workflow.KindOffense, 5, workflow.EventStartProcessing)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeInternal))
}
