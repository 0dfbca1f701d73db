package routing_test

import (
	"context"
	"testing"
	"time"

	"github.com/avolkhin/image-moderation/internal/entity"
	"github.com/avolkhin/image-moderation/internal/queue"
	"github.com/avolkhin/image-moderation/internal/routing"
	"github.com/avolkhin/image-moderation/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*routing.Router, *queue.Memory, *queue.Memory, *queue.Memory) {
	t.Helper()

	l := logger.New("error")
	router := routing.NewRouter(l)

	uploadQ := queue.NewMemory(time.Second, 0, nil)
	metadataQ := queue.NewMemory(time.Second, 0, nil)
	statusQ := queue.NewMemory(time.Second, 0, nil)

	require.NoError(t, router.Subscribe("upload-sub",
		routing.NewFilter(routing.Exists(routing.AttrSuffix)), uploadQ))
	require.NoError(t, router.Subscribe("metadata-sub",
		routing.NewFilter(routing.AnyOf(routing.AttrMetadataType, "Caption", "Date", "name", "email")), metadataQ))
	require.NoError(t, router.Subscribe("status-sub",
		routing.NewFilter(routing.AnyOf(routing.AttrMessageType, routing.MessageTypeStatusUpdate)), statusQ))

	return router, uploadQ, metadataQ, statusQ
}

func TestDispatchFanOutIsExclusive(t *testing.T) {
	router, uploadQ, metadataQ, statusQ := newTestRouter(t)

	uploadEnv, err := routing.NewUploadEnvelope(entity.UploadEvent{Bucket: "images", Key: "photo.png"})
	require.NoError(t, err)

	metadataEnv, err := routing.NewEnvelope(
		map[string]string{"id": "photo.png", "value": "sunset"},
		map[string]string{routing.AttrMetadataType: "Caption"},
	)
	require.NoError(t, err)

	statusEnv, err := routing.NewEnvelope(
		map[string]string{"id": "photo.png", "status": "APPROVED"},
		map[string]string{routing.AttrMessageType: routing.MessageTypeStatusUpdate},
	)
	require.NoError(t, err)

	require.NoError(t, router.Dispatch(context.Background(), uploadEnv))
	require.NoError(t, router.Dispatch(context.Background(), metadataEnv))
	require.NoError(t, router.Dispatch(context.Background(), statusEnv))

	// Each envelope lands on exactly one subscription.
	assert.Equal(t, 1, uploadQ.Depth())
	assert.Equal(t, 1, metadataQ.Depth())
	assert.Equal(t, 1, statusQ.Depth())
}

func TestDispatchUnmatchedEnvelopeGoesNowhere(t *testing.T) {
	router, uploadQ, metadataQ, statusQ := newTestRouter(t)

	env, err := routing.NewEnvelope(
		map[string]string{"id": "photo.png"},
		map[string]string{routing.AttrMetadataType: "UnknownField"},
	)
	require.NoError(t, err)

	require.NoError(t, router.Dispatch(context.Background(), env))

	assert.Zero(t, uploadQ.Depth())
	assert.Zero(t, metadataQ.Depth())
	assert.Zero(t, statusQ.Depth())
}

func TestDispatchDeliveredBodyUnwraps(t *testing.T) {
	router, uploadQ, _, _ := newTestRouter(t)

	env, err := routing.NewUploadEnvelope(entity.UploadEvent{Bucket: "images", Key: "photo.jpeg"})
	require.NoError(t, err)

	require.NoError(t, router.Dispatch(context.Background(), env))

	delivery, err := uploadQ.Receive(context.Background())
	require.NoError(t, err)

	got, err := routing.UnwrapEnvelope(delivery.Body)
	require.NoError(t, err)
	assert.Equal(t, env.Attributes, got.Attributes)

	event, err := routing.DecodeUploadEvent(got.Payload)
	require.NoError(t, err)
	assert.Equal(t, "photo.jpeg", event.Key)
}

func TestSubscribeRejectsBadConfig(t *testing.T) {
	l := logger.New("error")
	q := queue.NewMemory(time.Second, 0, nil)

	router := routing.NewRouter(l)
	require.NoError(t, router.Subscribe("a", routing.NewFilter(routing.Exists("x")), q))

	require.Error(t, router.Subscribe("", routing.NewFilter(routing.Exists("x")), q))
	require.Error(t, router.Subscribe("a", routing.NewFilter(routing.Exists("x")), q))
	require.Error(t, router.Subscribe("b", routing.NewFilter(routing.Exists("x")), nil))
	require.Error(t, router.Subscribe("c", routing.NewFilter(routing.Exists("")), q))
}
