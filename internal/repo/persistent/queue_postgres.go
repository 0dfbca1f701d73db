package persistent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/avolkhin/image-moderation/internal/queue"
	"github.com/avolkhin/image-moderation/pkg/postgres"
	"github.com/avolkhin/image-moderation/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	// Table
	queueTable = "queue_messages"

	// Columns
	queueMsgIDColumn        = "id"
	queueNameColumn         = "queue"
	queueBodyColumn         = "body"
	queueVisibleAtColumn    = "visible_at"
	queueReceiveCountColumn = "receive_count"
	queueCreatedAtColumn    = "created_at"
)

// QueueRepo is a durable queue on a shared Postgres table, one logical
// queue per name. The visibility lease is a future visible_at written under
// FOR UPDATE SKIP LOCKED, so concurrent receivers never double-hold a
// message inside the timeout.
type QueueRepo struct {
	*postgres.Postgres

	name       string
	deadLetter string
	visibility time.Duration
	maxReceive int
}

var _ queue.Queue = (*QueueRepo)(nil)

// NewQueueRepo builds the queue named name. deadLetter may be empty to
// disable redrive (dead-letter queues themselves are built that way).
func NewQueueRepo(pg *postgres.Postgres, name, deadLetter string, visibility time.Duration, maxReceive int) *QueueRepo {
	return &QueueRepo{
		Postgres:   pg,
		name:       name,
		deadLetter: deadLetter,
		visibility: visibility,
		maxReceive: maxReceive,
	}
}

func (q *QueueRepo) Send(ctx context.Context, body []byte) error {
	now := time.Now()

	sql, args, err := q.Builder.
		Insert(queueTable).
		Columns(
			queueMsgIDColumn,
			queueNameColumn,
			queueBodyColumn,
			queueVisibleAtColumn,
			queueReceiveCountColumn,
			queueCreatedAtColumn,
		).
		Values(uuid.New(), q.name, body, now, 0, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("QueueRepo - Send - q.Builder.ToSql: %w", err)
	}

	executor := q.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("QueueRepo - Send - executor.Exec: %w", err)
	}

	return nil
}

func (q *QueueRepo) Receive(ctx context.Context) (*queue.Delivery, error) {
	if err := q.redrive(ctx); err != nil {
		return nil, err
	}

	now := time.Now()

	sql, args, err := q.Builder.
		Update(queueTable).
		Set(queueVisibleAtColumn, now.Add(q.visibility)).
		Set(queueReceiveCountColumn, squirrel.Expr(queueReceiveCountColumn+" + 1")).
		Where(squirrel.Expr(
			queueMsgIDColumn+" = (SELECT "+queueMsgIDColumn+" FROM "+queueTable+
				" WHERE "+queueNameColumn+" = ? AND "+queueVisibleAtColumn+" <= ?"+
				" ORDER BY "+queueCreatedAtColumn+" ASC LIMIT 1 FOR UPDATE SKIP LOCKED)",
			q.name, now,
		)).
		Suffix("RETURNING " + queueMsgIDColumn + ", " + queueBodyColumn + ", " + queueReceiveCountColumn).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("QueueRepo - Receive - q.Builder.ToSql: %w", err)
	}

	executor := q.GetExecutor(ctx)

	var delivery queue.Delivery
	err = executor.QueryRow(ctx, sql, args...).Scan(&delivery.ID, &delivery.Body, &delivery.ReceiveCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNoMessages
		}
		return nil, fmt.Errorf("QueueRepo - Receive - executor.QueryRow: %w", err)
	}

	return &delivery, nil
}

// redrive moves every eligible message that exhausted its receive budget to
// the dead-letter queue, payload untouched.
func (q *QueueRepo) redrive(ctx context.Context) error {
	if q.deadLetter == "" || q.maxReceive <= 0 {
		return nil
	}

	now := time.Now()

	sql, args, err := q.Builder.
		Update(queueTable).
		Set(queueNameColumn, q.deadLetter).
		Set(queueReceiveCountColumn, 0).
		Set(queueVisibleAtColumn, now).
		Where(squirrel.And{
			squirrel.Eq{queueNameColumn: q.name},
			squirrel.LtOrEq{queueVisibleAtColumn: now},
			squirrel.GtOrEq{queueReceiveCountColumn: q.maxReceive},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("QueueRepo - redrive - q.Builder.ToSql: %w", err)
	}

	executor := q.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("QueueRepo - redrive - executor.Exec: %w", err)
	}

	return nil
}

func (q *QueueRepo) Delete(ctx context.Context, delivery *queue.Delivery) error {
	sql, args, err := q.Builder.
		Delete(queueTable).
		Where(squirrel.Eq{queueMsgIDColumn: delivery.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("QueueRepo - Delete - q.Builder.ToSql: %w", err)
	}

	executor := q.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("QueueRepo - Delete - executor.Exec: %w", err)
	}

	return nil
}
