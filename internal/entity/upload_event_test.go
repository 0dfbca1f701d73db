package entity_test

import (
	"testing"

	"github.com/avolkhin/image-moderation/internal/entity"
	"github.com/stretchr/testify/assert"
)

func TestUploadEventAccepted(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"photo.png", true},
		{"photo.jpeg", true},
		{"PHOTO.JPEG", true},
		{"archive/2026/photo.PnG", true},
		{"cat.gif", false},
		{"cat.jpg", false}, // only the long form is accepted
		{"noextension", false},
		{"trailingdot.", false},
		{"", false},
	}

	for _, tt := range tests {
		event := entity.UploadEvent{Bucket: "images", Key: tt.key}
		assert.Equal(t, tt.want, event.Accepted(), "key %q", tt.key)
	}
}

func TestImageRecordClone(t *testing.T) {
	r := &entity.ImageRecord{
		ID:         "photo.png",
		Status:     entity.StatusPending,
		Attributes: map[string]string{"Caption": "sunset"},
	}

	c := r.Clone()
	c.Attributes["Caption"] = "edited"
	c.Status = entity.StatusApproved

	assert.Equal(t, "sunset", r.Attributes["Caption"])
	assert.Equal(t, entity.StatusPending, r.Status)

	var nilRecord *entity.ImageRecord
	assert.Nil(t, nilRecord.Clone())
}
