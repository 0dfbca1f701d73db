package repo

import (
	"context"
	"io"

	"github.com/avolkhin/image-moderation/internal/entity"
	"github.com/google/uuid"
)

type (
	// RecordRepo is the durable record store. Mutations are primitive and
	// atomic; the use case composes them with change capture inside one
	// transaction via Transactor.
	RecordRepo interface {
		// CreateIfAbsent inserts the record only if the key does not exist
		// yet. Returns false (and no error) when it already did.
		CreateIfAbsent(ctx context.Context, record *entity.ImageRecord) (bool, error)
		// GetForUpdate loads and row-locks a record; only meaningful inside
		// a transaction. Returns errs.ErrRecordNotFound if absent.
		GetForUpdate(ctx context.Context, id string) (*entity.ImageRecord, error)
		// SetField sets one named field (known columns directly, anything
		// else into the attributes map) and returns the updated record.
		SetField(ctx context.Context, id, name, value string) (*entity.ImageRecord, error)
		// SetStatus sets the review status and reason and returns the
		// updated record.
		SetStatus(ctx context.Context, id string, status entity.ReviewStatus, reason string) (*entity.ImageRecord, error)
		GetByID(ctx context.Context, id string) (*entity.ImageRecord, error)
	}

	// ChangeRepo persists and drains the ordered change feed.
	ChangeRepo interface {
		Append(ctx context.Context, change *entity.ChangeEvent) error
		GetPendingChanges(ctx context.Context, maxRetries, limit int) ([]*entity.ChangeEvent, error)
		MarkAsProcessingBatch(ctx context.Context, ids uuid.UUIDs) error
		MarkAsProcessedBatch(ctx context.Context, ids uuid.UUIDs) error
		IncrementRetryCountBatch(ctx context.Context, ids uuid.UUIDs) error
		MarkMaxRetriesAsFailed(ctx context.Context, maxRetries int) error
		DeleteOldProcessedAndFailed(ctx context.Context) (int64, error)
	}

	// ObjectRepo is the binary object store.
	ObjectRepo interface {
		Upload(ctx context.Context, bucket, key string, data io.Reader, contentType string, size int64) error
		Download(ctx context.Context, bucket, key string) (io.ReadCloser, error)
		Delete(ctx context.Context, bucket, key string) error
	}

	// Transactor runs f atomically; repos called inside share the
	// transaction through the context.
	Transactor interface {
		WithinTransaction(ctx context.Context, f func(ctx context.Context) error) error
	}
)
