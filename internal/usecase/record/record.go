package record

import (
	"context"
	"fmt"
	"time"

	"github.com/avolkhin/image-moderation/internal/entity"
	"github.com/avolkhin/image-moderation/internal/repo"
	"github.com/avolkhin/image-moderation/pkg/logger"
	"github.com/avolkhin/image-moderation/pkg/types/errs"
)

// UseCase mutates the record store. Each operation is one transaction that
// pairs the mutation with its change-feed entry, so the feed never drifts
// from the table.
type UseCase struct {
	recordRepo repo.RecordRepo
	changeRepo repo.ChangeRepo
	transactor repo.Transactor

	logger logger.Interface
}

func New(
	recordRepo repo.RecordRepo,
	changeRepo repo.ChangeRepo,
	transactor repo.Transactor,
	l logger.Interface,
) *UseCase {
	return &UseCase{
		recordRepo: recordRepo,
		changeRepo: changeRepo,
		transactor: transactor,
		logger:     l,
	}
}

func (uc *UseCase) RegisterUpload(ctx context.Context, event entity.UploadEvent) error {
	if !event.Accepted() {
		return errs.NewValidation("unsupported file type: %s", event.Key)
	}

	now := time.Now()
	record := &entity.ImageRecord{
		ID:        event.Key,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := uc.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		created, err := uc.recordRepo.CreateIfAbsent(ctx, record)
		if err != nil {
			return fmt.Errorf("RecordUseCase - RegisterUpload - uc.recordRepo.CreateIfAbsent: %w", err)
		}

		// Duplicate delivery lands here: the record exists, nothing to do.
		// This is the idempotency boundary, not an error.
		if !created {
			uc.logger.Debug("duplicate upload event for %s", event.Key)

			return nil
		}

		if err := uc.changeRepo.Append(ctx, entity.NewInsertChange(record)); err != nil {
			return fmt.Errorf("RecordUseCase - RegisterUpload - uc.changeRepo.Append: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("RecordUseCase - RegisterUpload - uc.transactor.WithinTransaction: %w", err)
	}

	return nil
}

func (uc *UseCase) AttachMetadata(ctx context.Context, id, name, value string) error {
	if id == "" || name == "" {
		return errs.NewValidation("metadata update missing id or field name")
	}

	err := uc.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		old, err := uc.recordRepo.GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("RecordUseCase - AttachMetadata - uc.recordRepo.GetForUpdate: %w", err)
		}

		updated, err := uc.recordRepo.SetField(ctx, id, name, value)
		if err != nil {
			return fmt.Errorf("RecordUseCase - AttachMetadata - uc.recordRepo.SetField: %w", err)
		}

		if err := uc.changeRepo.Append(ctx, entity.NewModifyChange(old, updated)); err != nil {
			return fmt.Errorf("RecordUseCase - AttachMetadata - uc.changeRepo.Append: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("RecordUseCase - AttachMetadata - uc.transactor.WithinTransaction: %w", err)
	}

	return nil
}

func (uc *UseCase) UpdateStatus(ctx context.Context, id string, status entity.ReviewStatus, reason string) error {
	if id == "" || !status.Valid() {
		return errs.NewValidation("status update missing id or status")
	}

	err := uc.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		old, err := uc.recordRepo.GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("RecordUseCase - UpdateStatus - uc.recordRepo.GetForUpdate: %w", err)
		}

		updated, err := uc.recordRepo.SetStatus(ctx, id, status, reason)
		if err != nil {
			return fmt.Errorf("RecordUseCase - UpdateStatus - uc.recordRepo.SetStatus: %w", err)
		}

		if err := uc.changeRepo.Append(ctx, entity.NewModifyChange(old, updated)); err != nil {
			return fmt.Errorf("RecordUseCase - UpdateStatus - uc.changeRepo.Append: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("RecordUseCase - UpdateStatus - uc.transactor.WithinTransaction: %w", err)
	}

	return nil
}

func (uc *UseCase) GetRecord(ctx context.Context, id string) (*entity.ImageRecord, error) {
	record, err := uc.recordRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("RecordUseCase - GetRecord - uc.recordRepo.GetByID: %w", err)
	}

	return record, nil
}
