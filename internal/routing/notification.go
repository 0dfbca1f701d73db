package routing

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/avolkhin/image-moderation/internal/entity"
	"github.com/avolkhin/image-moderation/pkg/types/errs"
)

// storageNotification is the wire shape of an object-creation notification.
// The key arrives percent-encoded with spaces as '+', the way object stores
// emit it.
type storageNotification struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	ContentType string `json:"contentType,omitempty"`
}

// EncodeKey prepares an object key for the notification wire format.
func EncodeKey(key string) string {
	return url.QueryEscape(key)
}

// NormalizeKey reverses the wire encoding: '+' back to space, percent
// escapes decoded.
func NormalizeKey(raw string) (string, error) {
	key, err := url.QueryUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("routing - NormalizeKey: %w", err)
	}

	return key, nil
}

// NewUploadEnvelope builds the envelope a producer publishes when an object
// lands in the store. The suffix attribute is derived from the decoded key
// so subscriptions can filter before any consumer runs.
func NewUploadEnvelope(event entity.UploadEvent) (Envelope, error) {
	note := storageNotification{
		Bucket:      event.Bucket,
		Key:         EncodeKey(event.Key),
		ContentType: event.ContentType,
	}

	return NewEnvelope(note, map[string]string{
		AttrSuffix: event.Suffix(),
	})
}

// DecodeUploadEvent extracts and normalizes an upload event from an
// envelope payload.
func DecodeUploadEvent(payload []byte) (entity.UploadEvent, error) {
	var note storageNotification
	if err := json.Unmarshal(payload, &note); err != nil {
		return entity.UploadEvent{}, errs.NewValidation("bad storage notification: %v", err)
	}

	if note.Bucket == "" || note.Key == "" {
		return entity.UploadEvent{}, errs.NewValidation("storage notification missing bucket or key")
	}

	key, err := NormalizeKey(note.Key)
	if err != nil {
		return entity.UploadEvent{}, errs.NewValidation("storage notification key not decodable: %v", err)
	}

	return entity.UploadEvent{
		Bucket:      note.Bucket,
		Key:         key,
		ContentType: note.ContentType,
	}, nil
}
