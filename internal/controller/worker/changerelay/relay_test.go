package changerelay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/avolkhin/image-moderation/internal/entity"
	"github.com/avolkhin/image-moderation/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChangeRepo struct {
	mu      sync.Mutex
	pending []*entity.ChangeEvent

	processing uuid.UUIDs
	processed  uuid.UUIDs
	retried    uuid.UUIDs
}

func (f *fakeChangeRepo) Append(_ context.Context, change *entity.ChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pending = append(f.pending, change)

	return nil
}

func (f *fakeChangeRepo) GetPendingChanges(_ context.Context, _, limit int) ([]*entity.ChangeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}

	return f.pending, nil
}

func (f *fakeChangeRepo) MarkAsProcessingBatch(_ context.Context, ids uuid.UUIDs) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.processing = append(f.processing, ids...)

	return nil
}

func (f *fakeChangeRepo) MarkAsProcessedBatch(_ context.Context, ids uuid.UUIDs) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.processed = append(f.processed, ids...)
	f.removePending(ids)

	return nil
}

func (f *fakeChangeRepo) IncrementRetryCountBatch(_ context.Context, ids uuid.UUIDs) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.retried = append(f.retried, ids...)

	return nil
}

func (f *fakeChangeRepo) MarkMaxRetriesAsFailed(context.Context, int) error { return nil }

func (f *fakeChangeRepo) DeleteOldProcessedAndFailed(context.Context) (int64, error) {
	return 0, nil
}

func (f *fakeChangeRepo) removePending(ids uuid.UUIDs) {
	done := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		done[id] = true
	}

	kept := f.pending[:0]
	for _, change := range f.pending {
		if !done[change.ID] {
			kept = append(kept, change)
		}
	}
	f.pending = kept
}

type fakeNotifier struct {
	mu      sync.Mutex
	handled []string
	failKey string
}

func (f *fakeNotifier) HandleChange(_ context.Context, change *entity.ChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if change.Key == f.failKey {
		return errors.New("mailer unreachable")
	}

	f.handled = append(f.handled, change.Key)

	return nil
}

func statusChange(key string) *entity.ChangeEvent {
	return entity.NewModifyChange(
		&entity.ImageRecord{ID: key, Status: entity.StatusPending, Email: "owner@example.com"},
		&entity.ImageRecord{ID: key, Status: entity.StatusApproved, Email: "owner@example.com"},
	)
}

func newTestRelay(changeRepo *fakeChangeRepo, notifier *fakeNotifier) *Relay {
	return New(changeRepo, notifier, logger.New("error"),
		time.Minute, time.Minute, time.Minute, time.Minute, 100, 3)
}

func TestProcessBatchDispatchesInOrder(t *testing.T) {
	changeRepo := &fakeChangeRepo{}
	notifier := &fakeNotifier{}
	relay := newTestRelay(changeRepo, notifier)

	ctx := context.Background()
	require.NoError(t, changeRepo.Append(ctx, statusChange("a.png")))
	require.NoError(t, changeRepo.Append(ctx, statusChange("b.png")))
	require.NoError(t, changeRepo.Append(ctx, statusChange("c.png")))

	relay.processBatch(ctx)

	assert.Equal(t, []string{"a.png", "b.png", "c.png"}, notifier.handled)
	assert.Len(t, changeRepo.processing, 3)
	assert.Len(t, changeRepo.processed, 3)
	assert.Empty(t, changeRepo.retried)
	assert.Empty(t, changeRepo.pending)
}

func TestProcessBatchIsolatesFailures(t *testing.T) {
	changeRepo := &fakeChangeRepo{}
	notifier := &fakeNotifier{failKey: "b.png"}
	relay := newTestRelay(changeRepo, notifier)

	ctx := context.Background()
	require.NoError(t, changeRepo.Append(ctx, statusChange("a.png")))
	failing := statusChange("b.png")
	require.NoError(t, changeRepo.Append(ctx, failing))
	require.NoError(t, changeRepo.Append(ctx, statusChange("c.png")))

	relay.processBatch(ctx)

	// One bad change neither blocks nor loses the others.
	assert.Equal(t, []string{"a.png", "c.png"}, notifier.handled)
	assert.Len(t, changeRepo.processed, 2)
	require.Len(t, changeRepo.retried, 1)
	assert.Equal(t, failing.ID, changeRepo.retried[0])
}

func TestProcessBatchEmptyFeedIsQuiet(t *testing.T) {
	changeRepo := &fakeChangeRepo{}
	notifier := &fakeNotifier{}
	relay := newTestRelay(changeRepo, notifier)

	relay.processBatch(context.Background())

	assert.Empty(t, notifier.handled)
	assert.Empty(t, changeRepo.processing)
}
