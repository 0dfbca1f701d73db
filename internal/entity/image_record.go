package entity

import "time"

// ReviewStatus is the moderation decision on an image. The zero value means
// the image has not been reviewed yet.
type ReviewStatus string

const (
	StatusPending  ReviewStatus = "PENDING"
	StatusApproved ReviewStatus = "APPROVED"
	StatusRejected ReviewStatus = "REJECTED"
)

func (s ReviewStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// ImageRecord is the durable lifecycle entity, keyed by the normalized
// object key. It is created exactly once per ID and afterwards only ever
// updated field by field.
type ImageRecord struct {
	ID     string       `json:"id"`
	Status ReviewStatus `json:"status,omitempty"`
	Reason string       `json:"reason,omitempty"`
	Email  string       `json:"email,omitempty"`

	// Attributes holds free-form metadata (caption, date, name, ...),
	// each independently settable.
	Attributes map[string]string `json:"attributes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy, used to snapshot before/after states for the
// change feed.
func (r *ImageRecord) Clone() *ImageRecord {
	if r == nil {
		return nil
	}

	c := *r
	if r.Attributes != nil {
		c.Attributes = make(map[string]string, len(r.Attributes))
		for k, v := range r.Attributes {
			c.Attributes[k] = v
		}
	}

	return &c
}
