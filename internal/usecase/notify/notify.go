package notify

import (
	"context"
	"fmt"

	"github.com/avolkhin/image-moderation/internal/entity"
	"github.com/avolkhin/image-moderation/internal/infrastructure"
	"github.com/avolkhin/image-moderation/pkg/logger"
)

// UseCase turns qualifying change-feed entries into owner notifications.
// Redelivered changes may produce duplicate mail; that is the accepted
// at-least-once cost.
type UseCase struct {
	sender infrastructure.EmailSender

	logger logger.Interface
}

func New(sender infrastructure.EmailSender, l logger.Interface) *UseCase {
	return &UseCase{
		sender: sender,
		logger: l,
	}
}

func (uc *UseCase) HandleChange(ctx context.Context, change *entity.ChangeEvent) error {
	if !change.StatusChanged() {
		return nil
	}

	// A record without a contact has nothing to notify. Skipped, not failed.
	if change.New.ID == "" || change.New.Email == "" {
		uc.logger.Debug("status change on %s has no notifiable contact", change.Key)

		return nil
	}

	subject := fmt.Sprintf("status for %s", change.New.ID)
	body := fmt.Sprintf("%s, reason: %s", change.New.Status, change.New.Reason)

	err := uc.sender.SendEmail(ctx, change.New.Email, subject, body)
	if err != nil {
		return fmt.Errorf("NotifyUseCase - HandleChange - uc.sender.SendEmail: %w", err)
	}

	uc.logger.Info("sent status notification for %s to %s", change.New.ID, change.New.Email)

	return nil
}
