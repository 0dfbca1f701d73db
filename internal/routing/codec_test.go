package routing_test

import (
	"encoding/json"
	"testing"

	"github.com/avolkhin/image-moderation/internal/entity"
	"github.com/avolkhin/image-moderation/internal/routing"
	"github.com/avolkhin/image-moderation/pkg/types/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapUnwrapEnvelope(t *testing.T) {
	env, err := routing.NewEnvelope(
		map[string]string{"id": "photo.png"},
		map[string]string{routing.AttrMetadataType: "Caption"},
	)
	require.NoError(t, err)

	body, err := routing.WrapEnvelope(env)
	require.NoError(t, err)

	// The outer layer carries the inner envelope as a JSON string, so
	// consumers must decode twice.
	var outer map[string]any
	require.NoError(t, json.Unmarshal(body, &outer))
	_, ok := outer["message"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, outer["messageId"])

	got, err := routing.UnwrapEnvelope(body)
	require.NoError(t, err)
	assert.Equal(t, env.Attributes, got.Attributes)
	assert.JSONEq(t, string(env.Payload), string(got.Payload))
}

func TestUnwrapEnvelopeMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json at all", "definitely not json"},
		{"empty message", `{"messageId":"m-1","message":""}`},
		{"inner not json", `{"messageId":"m-1","message":"not json either"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := routing.UnwrapEnvelope([]byte(tt.body))
			require.ErrorIs(t, err, errs.ErrMalformedEnvelope)
		})
	}
}

func TestUploadEnvelopeRoundTrip(t *testing.T) {
	env, err := routing.NewUploadEnvelope(entity.UploadEvent{
		Bucket:      "images",
		Key:         "my holiday photo.PNG",
		ContentType: "image/png",
	})
	require.NoError(t, err)

	// The suffix attribute is derived from the raw key, lower-cased, so
	// filters evaluate it before anything is decoded.
	assert.Equal(t, ".png", env.Attributes[routing.AttrSuffix])

	// The key travels encoded and comes back normalized.
	event, err := routing.DecodeUploadEvent(env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "images", event.Bucket)
	assert.Equal(t, "my holiday photo.PNG", event.Key)
	assert.Equal(t, "image/png", event.ContentType)
}

func TestDecodeUploadEventInvalid(t *testing.T) {
	_, err := routing.DecodeUploadEvent([]byte("nope"))
	require.True(t, errs.IsValidation(err))

	_, err = routing.DecodeUploadEvent([]byte(`{"bucket":"images"}`))
	require.True(t, errs.IsValidation(err))

	_, err = routing.DecodeUploadEvent([]byte(`{"bucket":"images","key":"bad%zz"}`))
	require.True(t, errs.IsValidation(err))
}

func TestKeyNormalization(t *testing.T) {
	encoded := routing.EncodeKey("two words & a plus+.jpeg")
	decoded, err := routing.NormalizeKey(encoded)
	require.NoError(t, err)
	assert.Equal(t, "two words & a plus+.jpeg", decoded)
}
