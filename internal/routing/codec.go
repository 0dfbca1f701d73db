package routing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/avolkhin/image-moderation/pkg/types/errs"
	"github.com/google/uuid"
)

// transportWrapper is the outer layer a queued message carries: delivery
// metadata around the JSON-encoded envelope. Consumers therefore unwrap
// twice: outer wrapper, then inner envelope.
type transportWrapper struct {
	MessageID   string    `json:"messageId"`
	PublishedAt time.Time `json:"publishedAt"`
	Message     string    `json:"message"`
}

// WrapEnvelope encodes env for queue transport.
func WrapEnvelope(env Envelope) ([]byte, error) {
	inner, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("routing - WrapEnvelope - json.Marshal envelope: %w", err)
	}

	body, err := json.Marshal(transportWrapper{
		MessageID:   uuid.NewString(),
		PublishedAt: time.Now(),
		Message:     string(inner),
	})
	if err != nil {
		return nil, fmt.Errorf("routing - WrapEnvelope - json.Marshal wrapper: %w", err)
	}

	return body, nil
}

// UnwrapEnvelope decodes the two-layer transport body. Malformed nesting is
// reported explicitly instead of being half-parsed.
func UnwrapEnvelope(body []byte) (Envelope, error) {
	var wrapper transportWrapper
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return Envelope{}, fmt.Errorf("routing - UnwrapEnvelope - outer: %w: %w", errs.ErrMalformedEnvelope, err)
	}

	if wrapper.Message == "" {
		return Envelope{}, fmt.Errorf("routing - UnwrapEnvelope - outer: %w: empty message", errs.ErrMalformedEnvelope)
	}

	var env Envelope
	if err := json.Unmarshal([]byte(wrapper.Message), &env); err != nil {
		return Envelope{}, fmt.Errorf("routing - UnwrapEnvelope - inner: %w: %w", errs.ErrMalformedEnvelope, err)
	}

	return env, nil
}
