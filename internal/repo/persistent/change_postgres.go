package persistent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/avolkhin/image-moderation/internal/entity"
	"github.com/avolkhin/image-moderation/pkg/postgres"
	"github.com/avolkhin/image-moderation/pkg/types/errs"
	"github.com/google/uuid"
)

const (
	// Table
	changesTable = "record_changes"

	// Columns
	changeIDColumn          = "id"
	changeSeqColumn         = "seq"
	changeTypeColumn        = "change_type"
	changeKeyColumn         = "key"
	changeOldColumn         = "old_record"
	changeNewColumn         = "new_record"
	changeDispatchColumn    = "dispatch_status"
	changeCreatedAtColumn   = "created_at"
	changeProcessedAtColumn = "processed_at"
	changeRetryCountColumn  = "retry_count"
)

// ChangeRepo persists the record store's ordered change feed. Append runs
// in the same transaction as the mutation it describes; the relay drains
// rows in seq order.
type ChangeRepo struct {
	*postgres.Postgres
}

func NewChangeRepo(pg *postgres.Postgres) *ChangeRepo {
	return &ChangeRepo{pg}
}

func (r *ChangeRepo) Append(ctx context.Context, change *entity.ChangeEvent) error {
	oldSnapshot, newSnapshot, err := marshalSnapshots(change)
	if err != nil {
		return fmt.Errorf("ChangeRepo - Append - marshalSnapshots: %w", err)
	}

	sql, args, err := r.Builder.
		Insert(changesTable).
		Columns(
			changeIDColumn,
			changeTypeColumn,
			changeKeyColumn,
			changeOldColumn,
			changeNewColumn,
			changeDispatchColumn,
			changeCreatedAtColumn,
			changeRetryCountColumn,
		).
		Values(
			change.ID,
			string(change.Type),
			change.Key,
			oldSnapshot,
			newSnapshot,
			string(change.Dispatch),
			change.CreatedAt,
			change.RetryCount,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("ChangeRepo - Append - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("ChangeRepo - Append - executor.Exec: %w", err)
	}

	return nil
}

func (r *ChangeRepo) GetPendingChanges(ctx context.Context, maxRetries, limit int) ([]*entity.ChangeEvent, error) {
	sql, args, err := r.Builder.
		Select(
			changeIDColumn,
			changeSeqColumn,
			changeTypeColumn,
			changeKeyColumn,
			changeOldColumn,
			changeNewColumn,
			changeDispatchColumn,
			changeCreatedAtColumn,
			changeProcessedAtColumn,
			changeRetryCountColumn,
		).
		From(changesTable).
		Where(squirrel.And{
			squirrel.Eq{changeDispatchColumn: entity.DispatchPending},
			squirrel.Lt{changeRetryCountColumn: maxRetries},
		}).
		OrderBy(changeSeqColumn + " ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ChangeRepo - GetPendingChanges - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	rows, err := executor.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("ChangeRepo - GetPendingChanges - executor.Query: %w", err)
	}
	defer rows.Close()

	changes := make([]*entity.ChangeEvent, 0, limit)
	for rows.Next() {
		var (
			change      entity.ChangeEvent
			changeType  string
			dispatch    string
			oldSnapshot []byte
			newSnapshot []byte
		)

		err = rows.Scan(
			&change.ID,
			&change.Seq,
			&changeType,
			&change.Key,
			&oldSnapshot,
			&newSnapshot,
			&dispatch,
			&change.CreatedAt,
			&change.ProcessedAt,
			&change.RetryCount,
		)
		if err != nil {
			return nil, fmt.Errorf("ChangeRepo - GetPendingChanges - rows.Scan: %w", err)
		}

		change.Type = entity.ChangeType(changeType)
		change.Dispatch = entity.DispatchStatus(dispatch)

		if err := unmarshalSnapshots(&change, oldSnapshot, newSnapshot); err != nil {
			return nil, fmt.Errorf("ChangeRepo - GetPendingChanges - unmarshalSnapshots: %w", err)
		}

		changes = append(changes, &change)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ChangeRepo - GetPendingChanges - rows.Err: %w", err)
	}

	return changes, nil
}

func (r *ChangeRepo) MarkAsProcessingBatch(ctx context.Context, ids uuid.UUIDs) error {
	return r.markBatch(ctx, "MarkAsProcessingBatch", ids, entity.DispatchProcessing)
}

func (r *ChangeRepo) MarkAsProcessedBatch(ctx context.Context, ids uuid.UUIDs) error {
	return r.markBatch(ctx, "MarkAsProcessedBatch", ids, entity.DispatchProcessed)
}

func (r *ChangeRepo) markBatch(ctx context.Context, op string, ids uuid.UUIDs, status entity.DispatchStatus) error {
	sql, args, err := r.Builder.
		Update(changesTable).
		Set(changeDispatchColumn, string(status)).
		Set(changeProcessedAtColumn, time.Now()).
		Where(squirrel.Eq{changeIDColumn: ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ChangeRepo - %s - r.Builder.ToSql: %w", op, err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("ChangeRepo - %s - executor.Exec: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ChangeRepo - %s: %w", op, errs.ErrRecordNotFound)
	}

	return nil
}

func (r *ChangeRepo) IncrementRetryCountBatch(ctx context.Context, ids uuid.UUIDs) error {
	sql, args, err := r.Builder.
		Update(changesTable).
		Set(changeRetryCountColumn, squirrel.Expr(changeRetryCountColumn+" + 1")).
		Set(changeDispatchColumn, string(entity.DispatchPending)).
		Where(squirrel.Eq{changeIDColumn: ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ChangeRepo - IncrementRetryCountBatch - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("ChangeRepo - IncrementRetryCountBatch - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ChangeRepo - IncrementRetryCountBatch: %w", errs.ErrRecordNotFound)
	}

	return nil
}

func (r *ChangeRepo) MarkMaxRetriesAsFailed(ctx context.Context, maxRetries int) error {
	sql, args, err := r.Builder.
		Update(changesTable).
		Set(changeDispatchColumn, string(entity.DispatchFailed)).
		Where(squirrel.And{
			squirrel.Eq{changeDispatchColumn: string(entity.DispatchPending)},
			squirrel.GtOrEq{changeRetryCountColumn: maxRetries},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ChangeRepo - MarkMaxRetriesAsFailed - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("ChangeRepo - MarkMaxRetriesAsFailed - executor.Exec: %w", err)
	}

	return nil
}

func (r *ChangeRepo) DeleteOldProcessedAndFailed(ctx context.Context) (int64, error) {
	sql, args, err := r.Builder.
		Delete(changesTable).
		Where(squirrel.Or{
			squirrel.Eq{changeDispatchColumn: string(entity.DispatchProcessed)},
			squirrel.Eq{changeDispatchColumn: string(entity.DispatchFailed)},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ChangeRepo - DeleteOldProcessedAndFailed - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("ChangeRepo - DeleteOldProcessedAndFailed - executor.Exec: %w", err)
	}

	return tag.RowsAffected(), nil
}

func marshalSnapshots(change *entity.ChangeEvent) ([]byte, []byte, error) {
	var (
		oldSnapshot []byte
		newSnapshot []byte
		err         error
	)

	if change.Old != nil {
		oldSnapshot, err = json.Marshal(change.Old)
		if err != nil {
			return nil, nil, err
		}
	}

	if change.New != nil {
		newSnapshot, err = json.Marshal(change.New)
		if err != nil {
			return nil, nil, err
		}
	}

	return oldSnapshot, newSnapshot, nil
}

func unmarshalSnapshots(change *entity.ChangeEvent, oldSnapshot, newSnapshot []byte) error {
	if len(oldSnapshot) > 0 {
		change.Old = &entity.ImageRecord{}
		if err := json.Unmarshal(oldSnapshot, change.Old); err != nil {
			return err
		}
	}

	if len(newSnapshot) > 0 {
		change.New = &entity.ImageRecord{}
		if err := json.Unmarshal(newSnapshot, change.New); err != nil {
			return err
		}
	}

	return nil
}
