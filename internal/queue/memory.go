package queue

import (
	"context"
	"sync"
	"time"

	"github.com/avolkhin/image-moderation/pkg/types/errs"
	"github.com/google/uuid"
)

type memoryItem struct {
	id             string
	body           []byte
	receiveCount   int
	invisibleUntil time.Time
}

// Memory is an in-process Queue with the full delivery contract: visibility
// timeout, receive counting and dead-letter redrive. It backs the unit
// tests and the single-process dev mode.
type Memory struct {
	mu sync.Mutex

	visibility time.Duration
	maxReceive int
	deadLetter *Memory

	items []*memoryItem

	now func() time.Time
}

// NewMemory builds a queue. maxReceive <= 0 or a nil dead-letter queue
// disables redrive.
func NewMemory(visibility time.Duration, maxReceive int, deadLetter *Memory) *Memory {
	return &Memory{
		visibility: visibility,
		maxReceive: maxReceive,
		deadLetter: deadLetter,
		now:        time.Now,
	}
}

func (q *Memory) Send(ctx context.Context, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	copied := make([]byte, len(body))
	copy(copied, body)

	q.items = append(q.items, &memoryItem{
		id:   uuid.NewString(),
		body: copied,
	})

	return nil
}

func (q *Memory) Receive(ctx context.Context) (*Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()

	for i := 0; i < len(q.items); i++ {
		item := q.items[i]
		if item.invisibleUntil.After(now) {
			continue
		}

		// Exhausted its budget on this queue: redrive verbatim.
		if q.maxReceive > 0 && q.deadLetter != nil && item.receiveCount >= q.maxReceive {
			q.items = append(q.items[:i], q.items[i+1:]...)
			i--

			q.deadLetter.mu.Lock()
			q.deadLetter.items = append(q.deadLetter.items, &memoryItem{
				id:   item.id,
				body: item.body,
			})
			q.deadLetter.mu.Unlock()

			continue
		}

		item.receiveCount++
		item.invisibleUntil = now.Add(q.visibility)

		return &Delivery{
			ID:           item.id,
			Body:         item.body,
			ReceiveCount: item.receiveCount,
		}, nil
	}

	return nil, errs.ErrNoMessages
}

func (q *Memory) Delete(ctx context.Context, delivery *Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.items {
		if item.id == delivery.ID {
			q.items = append(q.items[:i], q.items[i+1:]...)

			return nil
		}
	}

	return nil
}

// Depth reports how many messages are currently buffered, visible or not.
func (q *Memory) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}
