package response

import "time"

type Error struct {
	Error string `json:"error" example:"message"`
}

// Accepted acknowledges a write that was published to the bus. The record
// itself materializes asynchronously once the consumers catch up.
type Accepted struct {
	ID     string `json:"id"`
	Bucket string `json:"bucket,omitempty"`
	Status string `json:"status" example:"queued"`
}

type Record struct {
	ID         string            `json:"id"`
	Status     string            `json:"status,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Email      string            `json:"email,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}
