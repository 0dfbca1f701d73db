package usecase

import (
	"context"

	"github.com/avolkhin/image-moderation/internal/entity"
)

type (
	// RecordUseCase owns the image lifecycle: idempotent creation on first
	// valid sighting, field-level metadata attachment, moderation-status
	// updates. Every mutation lands atomically together with its change-feed
	// entry.
	RecordUseCase interface {
		// RegisterUpload validates the upload and conditionally creates the
		// record. A duplicate sighting of the same key is a no-op success;
		// an unsupported file type is a validation error.
		RegisterUpload(ctx context.Context, event entity.UploadEvent) error
		// AttachMetadata sets one named field on an existing record.
		// Returns errs.ErrRecordNotFound when ingest has not landed yet.
		AttachMetadata(ctx context.Context, id, name, value string) error
		// UpdateStatus sets the moderation decision and reason on an
		// existing record. Same not-found contract as AttachMetadata.
		UpdateStatus(ctx context.Context, id string, status entity.ReviewStatus, reason string) error
		GetRecord(ctx context.Context, id string) (*entity.ImageRecord, error)
	}

	// QuarantineUseCase removes unprocessable uploads from storage. A
	// compensating action, not a retry.
	QuarantineUseCase interface {
		RemoveObject(ctx context.Context, bucket, key string) error
	}

	// NotifyUseCase reacts to change-feed entries, mailing the owner when a
	// moderation decision changes.
	NotifyUseCase interface {
		HandleChange(ctx context.Context, change *entity.ChangeEvent) error
	}
)
