package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChangeType classifies a record mutation on the change feed.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeModify ChangeType = "MODIFY"
)

// DispatchStatus tracks how far the relay got with a change row.
type DispatchStatus string

const (
	DispatchPending    DispatchStatus = "pending"
	DispatchProcessing DispatchStatus = "processing"
	DispatchProcessed  DispatchStatus = "processed"
	DispatchFailed     DispatchStatus = "failed"
)

// ChangeEvent is one entry of the record store's ordered change feed: the
// before/after snapshot of a single mutation, written in the same
// transaction as the mutation itself.
type ChangeEvent struct {
	ID   uuid.UUID  `json:"id"`
	Seq  int64      `json:"seq"`
	Type ChangeType `json:"type"`
	Key  string     `json:"key"`

	Old *ImageRecord `json:"old,omitempty"`
	New *ImageRecord `json:"new,omitempty"`

	Dispatch    DispatchStatus `json:"dispatch"`
	CreatedAt   time.Time      `json:"created_at"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
	RetryCount  int            `json:"retry_count"`
}

// NewInsertChange builds the feed entry for a first-time create.
func NewInsertChange(record *ImageRecord) *ChangeEvent {
	return &ChangeEvent{
		ID:        uuid.New(),
		Type:      ChangeInsert,
		Key:       record.ID,
		New:       record.Clone(),
		Dispatch:  DispatchPending,
		CreatedAt: time.Now(),
	}
}

// NewModifyChange builds the feed entry for an update to an existing record.
func NewModifyChange(old, updated *ImageRecord) *ChangeEvent {
	return &ChangeEvent{
		ID:        uuid.New(),
		Type:      ChangeModify,
		Key:       updated.ID,
		Old:       old.Clone(),
		New:       updated.Clone(),
		Dispatch:  DispatchPending,
		CreatedAt: time.Now(),
	}
}

// StatusChanged reports whether this change flipped the review status to a
// new, present value. Only such changes are worth notifying about.
func (c *ChangeEvent) StatusChanged() bool {
	if c.Type != ChangeModify || c.Old == nil || c.New == nil {
		return false
	}

	return c.New.Status != "" && c.New.Status != c.Old.Status
}
