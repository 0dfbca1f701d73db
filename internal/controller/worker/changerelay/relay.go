package changerelay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avolkhin/image-moderation/internal/entity"
	"github.com/avolkhin/image-moderation/internal/repo"
	"github.com/avolkhin/image-moderation/internal/usecase"
	"github.com/avolkhin/image-moderation/pkg/logger"
	"github.com/google/uuid"
)

// Relay drains the record store's change feed into the notifier. The feed
// is at-least-once: a change whose dispatch fails is retried on a later
// poll until the retry budget runs out, then parked as failed.
type Relay struct {
	changeRepo repo.ChangeRepo
	notifier   usecase.NotifyUseCase
	logger     logger.Interface

	pollInterval        time.Duration
	cleanupInterval     time.Duration
	markFailedInterval  time.Duration
	processBatchTimeout time.Duration
	batchSize           int
	maxRetries          int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
}

func New(
	changeRepo repo.ChangeRepo,
	notifier usecase.NotifyUseCase,
	l logger.Interface,
	pollInterval time.Duration,
	cleanupInterval time.Duration,
	markFailedInterval time.Duration,
	processBatchTimeout time.Duration,
	batchSize int,
	maxRetries int,
) *Relay {
	return &Relay{
		changeRepo:          changeRepo,
		notifier:            notifier,
		logger:              l,
		pollInterval:        pollInterval,
		cleanupInterval:     cleanupInterval,
		markFailedInterval:  markFailedInterval,
		processBatchTimeout: processBatchTimeout,
		batchSize:           batchSize,
		maxRetries:          maxRetries,
	}
}

func (r *Relay) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return fmt.Errorf("Relay - Start - relay already started")
	}

	r.ctx, r.cancel = context.WithCancel(ctx)

	// 1. dispatch worker
	r.worker(r.pollInterval, func() {
		batchCtx, batchCancel := context.WithTimeout(r.ctx, r.processBatchTimeout)
		r.processBatch(batchCtx)
		batchCancel()
	})

	// 2. park changes that ran out of retries
	r.worker(r.markFailedInterval, func() {
		err := r.changeRepo.MarkMaxRetriesAsFailed(r.ctx, r.maxRetries)
		if err != nil {
			r.logger.Error(err, "Relay - Start - worker - r.changeRepo.MarkMaxRetriesAsFailed")
		}
	})

	// 3. cleanup of processed/failed rows
	r.worker(r.cleanupInterval, func() {
		count, err := r.changeRepo.DeleteOldProcessedAndFailed(r.ctx)
		if err != nil {
			r.logger.Error(err, "Relay - Start - worker - r.changeRepo.DeleteOldProcessedAndFailed")

			return
		}
		if count > 0 {
			r.logger.Info("cleaned up change feed, count = %d", count)
		}
	})

	return nil
}

func (r *Relay) processBatch(ctx context.Context) {
	changes, err := r.changeRepo.GetPendingChanges(ctx, r.maxRetries, r.batchSize)
	if err != nil {
		r.logger.Error(err, "Relay - processBatch - r.changeRepo.GetPendingChanges")

		return
	}
	if len(changes) == 0 {
		return
	}

	ids := changeIDs(changes)

	err = r.changeRepo.MarkAsProcessingBatch(ctx, ids)
	if err != nil {
		r.logger.Error(err, "Relay - processBatch - r.changeRepo.MarkAsProcessingBatch")

		return
	}

	// Dispatch per change: the feed is ordered per key, one failure must
	// not swallow a whole batch's notifications.
	var processed, failed uuid.UUIDs

	for _, change := range changes {
		err = r.notifier.HandleChange(ctx, change)
		if err != nil {
			r.logger.Error(err, "Relay - processBatch - r.notifier.HandleChange")
			failed = append(failed, change.ID)

			continue
		}
		processed = append(processed, change.ID)
	}

	if len(processed) > 0 {
		err = r.changeRepo.MarkAsProcessedBatch(ctx, processed)
		if err != nil {
			r.logger.Error(err, "Relay - processBatch - r.changeRepo.MarkAsProcessedBatch")
		}
	}

	if len(failed) > 0 {
		err = r.changeRepo.IncrementRetryCountBatch(ctx, failed)
		if err != nil {
			r.logger.Error(err, "Relay - processBatch - r.changeRepo.IncrementRetryCountBatch")
		}
	}
}

func (r *Relay) worker(interval time.Duration, task func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				task()
			}
		}
	}()
}

func (r *Relay) Shutdown(ctx context.Context) error {
	if !r.started.Load() {
		return nil
	}

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})

	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return nil
	}
}

func changeIDs(changes []*entity.ChangeEvent) uuid.UUIDs {
	ids := make(uuid.UUIDs, 0, len(changes))
	for _, change := range changes {
		ids = append(ids, change.ID)
	}

	return ids
}
