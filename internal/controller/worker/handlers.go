package worker

import (
	"context"
	"encoding/json"

	"github.com/avolkhin/image-moderation/internal/entity"
	"github.com/avolkhin/image-moderation/internal/routing"
	"github.com/avolkhin/image-moderation/internal/usecase"
	"github.com/avolkhin/image-moderation/pkg/types/errs"
)

// IngestHandler records the first valid sighting of an uploaded object.
func IngestHandler(rec usecase.RecordUseCase) Handler {
	return func(ctx context.Context, env routing.Envelope) error {
		event, err := routing.DecodeUploadEvent(env.Payload)
		if err != nil {
			return err
		}

		return rec.RegisterUpload(ctx, event)
	}
}

// MetadataHandler attaches one metadata field named by the envelope's
// metadata_type attribute.
func MetadataHandler(rec usecase.RecordUseCase) Handler {
	return func(ctx context.Context, env routing.Envelope) error {
		name := env.Attributes[routing.AttrMetadataType]
		if name == "" {
			return errs.NewValidation("metadata envelope without metadata_type attribute")
		}

		var payload metadataPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return errs.NewValidation("bad metadata payload: %v", err)
		}
		if payload.ID == "" || payload.Value == "" {
			return errs.NewValidation("metadata payload missing id or value")
		}

		return rec.AttachMetadata(ctx, payload.ID, name, payload.Value)
	}
}

// StatusHandler applies a moderation decision.
func StatusHandler(rec usecase.RecordUseCase) Handler {
	return func(ctx context.Context, env routing.Envelope) error {
		var payload statusPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return errs.NewValidation("bad status payload: %v", err)
		}
		if payload.ID == "" || payload.Status == "" {
			return errs.NewValidation("status payload missing id or status")
		}

		return rec.UpdateStatus(ctx, payload.ID, entity.ReviewStatus(payload.Status), payload.Reason)
	}
}

// QuarantineHandler consumes the upload dead-letter queue: whatever ended
// there could not be processed, so the underlying object is deleted.
func QuarantineHandler(q usecase.QuarantineUseCase) Handler {
	return func(ctx context.Context, env routing.Envelope) error {
		event, err := routing.DecodeUploadEvent(env.Payload)
		if err != nil {
			return err
		}

		return q.RemoveObject(ctx, event.Bucket, event.Key)
	}
}
