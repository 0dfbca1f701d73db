package record_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/avolkhin/image-moderation/internal/entity"
	"github.com/avolkhin/image-moderation/internal/usecase/record"
	"github.com/avolkhin/image-moderation/pkg/logger"
	"github.com/avolkhin/image-moderation/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory RecordRepo with the store's conditional-create
// contract.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*entity.ImageRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*entity.ImageRecord)}
}

func (s *fakeStore) CreateIfAbsent(_ context.Context, record *entity.ImageRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.ID]; ok {
		return false, nil
	}

	s.records[record.ID] = record.Clone()

	return true, nil
}

func (s *fakeStore) GetForUpdate(_ context.Context, id string) (*entity.ImageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}

	return r.Clone(), nil
}

func (s *fakeStore) SetField(_ context.Context, id, name, value string) (*entity.ImageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}

	if name == "email" {
		r.Email = value
	} else {
		if r.Attributes == nil {
			r.Attributes = make(map[string]string)
		}
		r.Attributes[name] = value
	}
	r.UpdatedAt = time.Now()

	return r.Clone(), nil
}

func (s *fakeStore) SetStatus(_ context.Context, id string, status entity.ReviewStatus, reason string) (*entity.ImageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}

	r.Status = status
	r.Reason = reason
	r.UpdatedAt = time.Now()

	return r.Clone(), nil
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (*entity.ImageRecord, error) {
	return s.GetForUpdate(ctx, id)
}

// fakeFeed collects appended change entries; the drain-side methods are
// never reached through the use case.
type fakeFeed struct {
	mu      sync.Mutex
	changes []*entity.ChangeEvent
}

func (f *fakeFeed) Append(_ context.Context, change *entity.ChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.changes = append(f.changes, change)

	return nil
}

func (f *fakeFeed) GetPendingChanges(context.Context, int, int) ([]*entity.ChangeEvent, error) {
	return nil, nil
}
func (f *fakeFeed) MarkAsProcessingBatch(context.Context, uuid.UUIDs) error    { return nil }
func (f *fakeFeed) MarkAsProcessedBatch(context.Context, uuid.UUIDs) error     { return nil }
func (f *fakeFeed) IncrementRetryCountBatch(context.Context, uuid.UUIDs) error { return nil }
func (f *fakeFeed) MarkMaxRetriesAsFailed(context.Context, int) error          { return nil }
func (f *fakeFeed) DeleteOldProcessedAndFailed(context.Context) (int64, error) { return 0, nil }

func (f *fakeFeed) entries() []*entity.ChangeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*entity.ChangeEvent, len(f.changes))
	copy(out, f.changes)

	return out
}

// passTransactor runs f directly; atomicity is the real store's concern.
type passTransactor struct{}

func (passTransactor) WithinTransaction(ctx context.Context, f func(ctx context.Context) error) error {
	return f(ctx)
}

func newUseCase() (*record.UseCase, *fakeStore, *fakeFeed) {
	store := newFakeStore()
	feed := &fakeFeed{}

	return record.New(store, feed, passTransactor{}, logger.New("error")), store, feed
}

func TestRegisterUploadCreatesOnce(t *testing.T) {
	uc, store, feed := newUseCase()
	ctx := context.Background()
	event := entity.UploadEvent{Bucket: "images", Key: "photo.png"}

	// Same event delivered several times: one record, one feed entry.
	for i := 0; i < 3; i++ {
		require.NoError(t, uc.RegisterUpload(ctx, event))
	}

	require.Len(t, store.records, 1)
	require.Contains(t, store.records, "photo.png")

	entries := feed.entries()
	require.Len(t, entries, 1)
	assert.Equal(t, entity.ChangeInsert, entries[0].Type)
	assert.Equal(t, "photo.png", entries[0].Key)
	assert.Nil(t, entries[0].Old)
	require.NotNil(t, entries[0].New)
	assert.Empty(t, entries[0].New.Status)
}

func TestRegisterUploadRejectsUnsupportedType(t *testing.T) {
	uc, store, feed := newUseCase()

	err := uc.RegisterUpload(context.Background(), entity.UploadEvent{Bucket: "images", Key: "cat.gif"})
	require.True(t, errs.IsValidation(err))
	assert.Empty(t, store.records)
	assert.Empty(t, feed.entries())

	// Extension casing does not matter.
	require.NoError(t, uc.RegisterUpload(context.Background(), entity.UploadEvent{Bucket: "images", Key: "dog.JPEG"}))
}

func TestRegisterUploadConcurrentDuplicates(t *testing.T) {
	uc, store, feed := newUseCase()
	event := entity.UploadEvent{Bucket: "images", Key: "race.png"}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, uc.RegisterUpload(context.Background(), event))
		}()
	}
	wg.Wait()

	assert.Len(t, store.records, 1)
	assert.Len(t, feed.entries(), 1)
}

func TestAttachMetadata(t *testing.T) {
	uc, store, feed := newUseCase()
	ctx := context.Background()

	require.NoError(t, uc.RegisterUpload(ctx, entity.UploadEvent{Bucket: "images", Key: "photo.png"}))

	require.NoError(t, uc.AttachMetadata(ctx, "photo.png", "Caption", "sunset"))
	require.NoError(t, uc.AttachMetadata(ctx, "photo.png", "email", "owner@example.com"))

	r := store.records["photo.png"]
	assert.Equal(t, "sunset", r.Attributes["Caption"])
	assert.Equal(t, "owner@example.com", r.Email)

	entries := feed.entries()
	require.Len(t, entries, 3)

	last := entries[2]
	assert.Equal(t, entity.ChangeModify, last.Type)
	require.NotNil(t, last.Old)
	require.NotNil(t, last.New)
	assert.Empty(t, last.Old.Email)
	assert.Equal(t, "owner@example.com", last.New.Email)
}

func TestAttachMetadataMissingRecord(t *testing.T) {
	uc, _, feed := newUseCase()

	err := uc.AttachMetadata(context.Background(), "never-uploaded.png", "Caption", "x")
	require.ErrorIs(t, err, errs.ErrRecordNotFound)
	assert.Empty(t, feed.entries())
}

func TestAttachMetadataValidation(t *testing.T) {
	uc, _, _ := newUseCase()

	require.True(t, errs.IsValidation(uc.AttachMetadata(context.Background(), "", "Caption", "x")))
	require.True(t, errs.IsValidation(uc.AttachMetadata(context.Background(), "photo.png", "", "x")))
}

func TestUpdateStatus(t *testing.T) {
	uc, store, feed := newUseCase()
	ctx := context.Background()

	require.NoError(t, uc.RegisterUpload(ctx, entity.UploadEvent{Bucket: "images", Key: "photo.png"}))
	require.NoError(t, uc.UpdateStatus(ctx, "photo.png", entity.StatusRejected, "blurry"))

	r := store.records["photo.png"]
	assert.Equal(t, entity.StatusRejected, r.Status)
	assert.Equal(t, "blurry", r.Reason)

	entries := feed.entries()
	require.Len(t, entries, 2)
	assert.True(t, entries[1].StatusChanged())
}

func TestUpdateStatusValidation(t *testing.T) {
	uc, _, _ := newUseCase()

	require.True(t, errs.IsValidation(uc.UpdateStatus(context.Background(), "photo.png", "SHREDDED", "")))
	require.True(t, errs.IsValidation(uc.UpdateStatus(context.Background(), "", entity.StatusApproved, "")))
}

func TestGetRecord(t *testing.T) {
	uc, _, _ := newUseCase()
	ctx := context.Background()

	_, err := uc.GetRecord(ctx, "missing.png")
	require.ErrorIs(t, err, errs.ErrRecordNotFound)

	require.NoError(t, uc.RegisterUpload(ctx, entity.UploadEvent{Bucket: "images", Key: "photo.png"}))

	got, err := uc.GetRecord(ctx, "photo.png")
	require.NoError(t, err)
	assert.Equal(t, "photo.png", got.ID)
}
