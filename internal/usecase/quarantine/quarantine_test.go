package quarantine_test

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/avolkhin/image-moderation/internal/usecase/quarantine"
	"github.com/avolkhin/image-moderation/pkg/logger"
	"github.com/avolkhin/image-moderation/pkg/types/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectStore struct {
	mu      sync.Mutex
	deleted []string
}

func (s *fakeObjectStore) Upload(context.Context, string, string, io.Reader, string, int64) error {
	return nil
}

func (s *fakeObjectStore) Download(context.Context, string, string) (io.ReadCloser, error) {
	return nil, errs.ErrRecordNotFound
}

func (s *fakeObjectStore) Delete(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleted = append(s.deleted, bucket+"/"+key)

	return nil
}

func TestRemoveObject(t *testing.T) {
	store := &fakeObjectStore{}
	uc := quarantine.New(store, logger.New("error"))

	require.NoError(t, uc.RemoveObject(context.Background(), "images", "cat.gif"))
	assert.Equal(t, []string{"images/cat.gif"}, store.deleted)
}

func TestRemoveObjectValidation(t *testing.T) {
	store := &fakeObjectStore{}
	uc := quarantine.New(store, logger.New("error"))

	require.True(t, errs.IsValidation(uc.RemoveObject(context.Background(), "", "cat.gif")))
	require.True(t, errs.IsValidation(uc.RemoveObject(context.Background(), "images", "")))
	assert.Empty(t, store.deleted)
}
