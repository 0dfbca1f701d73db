package routing

import (
	"encoding/json"
	"fmt"
)

// Attribute names the standard subscriptions filter on. Attributes are set
// by the producer at publish time and never change afterwards.
const (
	AttrSuffix       = "suffix"
	AttrMetadataType = "metadata_type"
	AttrMessageType  = "message_type"
)

// MessageTypeStatusUpdate marks an envelope as a moderation decision, so
// that status updates and metadata attachments never land on the same
// subscription.
const MessageTypeStatusUpdate = "status_update"

// Envelope is the broker message: a domain payload plus the attribute
// mapping that filters evaluate against.
type Envelope struct {
	Attributes map[string]string `json:"attributes,omitempty"`
	Payload    json.RawMessage   `json:"payload"`
}

// NewEnvelope marshals payload and attaches a copy of attrs, keeping the
// published envelope immutable against later map edits.
func NewEnvelope(payload any, attrs map[string]string) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("routing - NewEnvelope - json.Marshal: %w", err)
	}

	copied := make(map[string]string, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}

	return Envelope{Attributes: copied, Payload: b}, nil
}
