package quarantine

import (
	"context"
	"fmt"

	"github.com/avolkhin/image-moderation/internal/repo"
	"github.com/avolkhin/image-moderation/pkg/logger"
	"github.com/avolkhin/image-moderation/pkg/types/errs"
)

// UseCase deletes objects whose upload events exhausted their delivery
// budget. Once invoked the object is gone; retries of the delete itself are
// harmless.
type UseCase struct {
	objectRepo repo.ObjectRepo

	logger logger.Interface
}

func New(objectRepo repo.ObjectRepo, l logger.Interface) *UseCase {
	return &UseCase{
		objectRepo: objectRepo,
		logger:     l,
	}
}

func (uc *UseCase) RemoveObject(ctx context.Context, bucket, key string) error {
	if bucket == "" || key == "" {
		return errs.NewValidation("quarantine removal missing bucket or key")
	}

	err := uc.objectRepo.Delete(ctx, bucket, key)
	if err != nil {
		return fmt.Errorf("QuarantineUseCase - RemoveObject - uc.objectRepo.Delete: %w", err)
	}

	uc.logger.Info("removed unprocessable object %s from bucket %s", key, bucket)

	return nil
}
