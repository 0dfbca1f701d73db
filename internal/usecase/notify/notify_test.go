package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/avolkhin/image-moderation/internal/entity"
	"github.com/avolkhin/image-moderation/internal/usecase/notify"
	"github.com/avolkhin/image-moderation/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to, subject, body string
}

type fakeSender struct {
	sent []sentMail
	err  error
}

func (s *fakeSender) SendEmail(_ context.Context, to, subject, body string) error {
	if s.err != nil {
		return s.err
	}

	s.sent = append(s.sent, sentMail{to: to, subject: subject, body: body})

	return nil
}

func modifyChange(old, updated *entity.ImageRecord) *entity.ChangeEvent {
	return entity.NewModifyChange(old, updated)
}

func TestHandleChangeSendsOnStatusFlip(t *testing.T) {
	sender := &fakeSender{}
	uc := notify.New(sender, logger.New("error"))

	old := &entity.ImageRecord{ID: "photo.png", Status: entity.StatusPending, Email: "owner@example.com"}
	updated := &entity.ImageRecord{ID: "photo.png", Status: entity.StatusRejected, Reason: "blurry", Email: "owner@example.com"}

	require.NoError(t, uc.HandleChange(context.Background(), modifyChange(old, updated)))

	require.Len(t, sender.sent, 1)
	mail := sender.sent[0]
	assert.Equal(t, "owner@example.com", mail.to)
	assert.Contains(t, mail.subject, "photo.png")
	assert.Contains(t, mail.body, "REJECTED")
	assert.Contains(t, mail.body, "blurry")
}

func TestHandleChangeSkipsQuietly(t *testing.T) {
	tests := []struct {
		name   string
		change *entity.ChangeEvent
	}{
		{
			name: "insert is not a decision",
			change: entity.NewInsertChange(
				&entity.ImageRecord{ID: "photo.png", Email: "owner@example.com"},
			),
		},
		{
			name: "status did not change",
			change: modifyChange(
				&entity.ImageRecord{ID: "photo.png", Status: entity.StatusApproved, Email: "owner@example.com"},
				&entity.ImageRecord{ID: "photo.png", Status: entity.StatusApproved, Email: "owner@example.com", Reason: "still fine"},
			),
		},
		{
			name: "status cleared rather than set",
			change: modifyChange(
				&entity.ImageRecord{ID: "photo.png", Status: entity.StatusApproved, Email: "owner@example.com"},
				&entity.ImageRecord{ID: "photo.png", Email: "owner@example.com"},
			),
		},
		{
			name: "no contact on record",
			change: modifyChange(
				&entity.ImageRecord{ID: "photo.png", Status: entity.StatusPending},
				&entity.ImageRecord{ID: "photo.png", Status: entity.StatusApproved},
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			uc := notify.New(sender, logger.New("error"))

			require.NoError(t, uc.HandleChange(context.Background(), tt.change))
			assert.Empty(t, sender.sent)
		})
	}
}

func TestHandleChangePropagatesSendFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp down")}
	uc := notify.New(sender, logger.New("error"))

	change := modifyChange(
		&entity.ImageRecord{ID: "photo.png", Status: entity.StatusPending, Email: "owner@example.com"},
		&entity.ImageRecord{ID: "photo.png", Status: entity.StatusApproved, Email: "owner@example.com"},
	)

	require.Error(t, uc.HandleChange(context.Background(), change))
}
