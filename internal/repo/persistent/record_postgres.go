package persistent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/avolkhin/image-moderation/internal/entity"
	"github.com/avolkhin/image-moderation/pkg/postgres"
	"github.com/avolkhin/image-moderation/pkg/types/errs"
	"github.com/jackc/pgx/v5"
)

const (
	// Table
	recordsTable = "image_records"

	// Columns
	recordIDColumn         = "id"
	recordStatusColumn     = "status"
	recordReasonColumn     = "reason"
	recordEmailColumn      = "email"
	recordAttributesColumn = "attributes"
	recordCreatedAtColumn  = "created_at"
	recordUpdatedAtColumn  = "updated_at"
)

// emailField is the one free-form metadata name that maps onto a dedicated
// column, because the notifier reads it.
const emailField = "email"

type RecordRepo struct {
	*postgres.Postgres
}

func NewRecordRepo(pg *postgres.Postgres) *RecordRepo {
	return &RecordRepo{pg}
}

func (r *RecordRepo) CreateIfAbsent(ctx context.Context, record *entity.ImageRecord) (bool, error) {
	attrs, err := marshalAttributes(record.Attributes)
	if err != nil {
		return false, fmt.Errorf("RecordRepo - CreateIfAbsent - marshalAttributes: %w", err)
	}

	sql, args, err := r.Builder.
		Insert(recordsTable).
		Columns(
			recordIDColumn,
			recordStatusColumn,
			recordReasonColumn,
			recordEmailColumn,
			recordAttributesColumn,
			recordCreatedAtColumn,
			recordUpdatedAtColumn,
		).
		Values(
			record.ID,
			string(record.Status),
			record.Reason,
			record.Email,
			attrs,
			record.CreatedAt,
			record.UpdatedAt,
		).
		Suffix("ON CONFLICT (" + recordIDColumn + ") DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("RecordRepo - CreateIfAbsent - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("RecordRepo - CreateIfAbsent - executor.Exec: %w", err)
	}

	// Zero rows means the key already existed: the caller treats that as a
	// no-op success, not an error.
	return tag.RowsAffected() == 1, nil
}

func (r *RecordRepo) GetForUpdate(ctx context.Context, id string) (*entity.ImageRecord, error) {
	return r.get(ctx, id, true)
}

func (r *RecordRepo) GetByID(ctx context.Context, id string) (*entity.ImageRecord, error) {
	return r.get(ctx, id, false)
}

func (r *RecordRepo) get(ctx context.Context, id string, forUpdate bool) (*entity.ImageRecord, error) {
	builder := r.Builder.
		Select(
			recordIDColumn,
			recordStatusColumn,
			recordReasonColumn,
			recordEmailColumn,
			recordAttributesColumn,
			recordCreatedAtColumn,
			recordUpdatedAtColumn,
		).
		From(recordsTable).
		Where(squirrel.Eq{recordIDColumn: id})

	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("RecordRepo - get - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	record, err := scanRecord(executor.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("RecordRepo - get: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("RecordRepo - get - executor.QueryRow: %w", err)
	}

	return record, nil
}

func (r *RecordRepo) SetField(ctx context.Context, id, name, value string) (*entity.ImageRecord, error) {
	builder := r.Builder.
		Update(recordsTable).
		Set(recordUpdatedAtColumn, time.Now())

	if name == emailField {
		builder = builder.Set(recordEmailColumn, value)
	} else {
		patch, err := marshalAttributes(map[string]string{name: value})
		if err != nil {
			return nil, fmt.Errorf("RecordRepo - SetField - marshalAttributes: %w", err)
		}
		builder = builder.Set(recordAttributesColumn, squirrel.Expr(recordAttributesColumn+" || ?", patch))
	}

	sql, args, err := builder.
		Where(squirrel.Eq{recordIDColumn: id}).
		Suffix(returningRecordColumns()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("RecordRepo - SetField - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	record, err := scanRecord(executor.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("RecordRepo - SetField: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("RecordRepo - SetField - executor.QueryRow: %w", err)
	}

	return record, nil
}

func (r *RecordRepo) SetStatus(ctx context.Context, id string, status entity.ReviewStatus, reason string) (*entity.ImageRecord, error) {
	sql, args, err := r.Builder.
		Update(recordsTable).
		Set(recordStatusColumn, string(status)).
		Set(recordReasonColumn, reason).
		Set(recordUpdatedAtColumn, time.Now()).
		Where(squirrel.Eq{recordIDColumn: id}).
		Suffix(returningRecordColumns()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("RecordRepo - SetStatus - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	record, err := scanRecord(executor.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("RecordRepo - SetStatus: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("RecordRepo - SetStatus - executor.QueryRow: %w", err)
	}

	return record, nil
}

func returningRecordColumns() string {
	return "RETURNING " + recordIDColumn + ", " + recordStatusColumn + ", " + recordReasonColumn + ", " +
		recordEmailColumn + ", " + recordAttributesColumn + ", " + recordCreatedAtColumn + ", " + recordUpdatedAtColumn
}

func scanRecord(row pgx.Row) (*entity.ImageRecord, error) {
	var (
		record entity.ImageRecord
		status string
		attrs  []byte
	)

	err := row.Scan(
		&record.ID,
		&status,
		&record.Reason,
		&record.Email,
		&attrs,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Status = entity.ReviewStatus(status)

	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &record.Attributes); err != nil {
			return nil, fmt.Errorf("scanRecord - json.Unmarshal attributes: %w", err)
		}
	}

	return &record, nil
}

func marshalAttributes(attrs map[string]string) ([]byte, error) {
	if attrs == nil {
		attrs = map[string]string{}
	}

	return json.Marshal(attrs)
}
