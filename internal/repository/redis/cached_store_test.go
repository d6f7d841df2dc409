package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"shortlink-bot/internal/domain"
	"shortlink-bot/internal/repository"
	"shortlink-bot/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==================== MOCKS ====================

type MockRecordCache struct {
	mock.Mock
}

func (m *MockRecordCache) GetRecord(ctx context.Context, shortURL string) (*domain.Record, error) {
	args := m.Called(ctx, shortURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Record), args.Error(1)
}

func (m *MockRecordCache) SetRecord(ctx context.Context, rec *domain.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockRecordCache) DeleteByShortURL(ctx context.Context, shortURL string) error {
	args := m.Called(ctx, shortURL)
	return args.Error(0)
}

func (m *MockRecordCache) DeleteByID(ctx context.Context, recordID string) error {
	args := m.Called(ctx, recordID)
	return args.Error(0)
}

// ==================== HELPER FUNCTIONS ====================

func setupCachedStore(t *testing.T) (*CachedStore, *memory.Store, *MockRecordCache) {
	t.Helper()
	store := memory.NewStore()
	cache := new(MockRecordCache)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCachedStore(store, cache, logger), store, cache
}

// ==================== TESTS ====================

func TestCachedStore_FindByShortURL_Hit(t *testing.T) {
	// Arrange
	cached, _, cache := setupCachedStore(t)
	rec := domain.NewRecord(domain.Owner{ID: 1}, "https://a.example", "https://s.test/a", "hash")
	cache.On("GetRecord", mock.Anything, rec.ShortURL).Return(rec, nil)

	// Act
	got, err := cached.FindByShortURL(context.Background(), rec.ShortURL)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	cache.AssertNotCalled(t, "SetRecord", mock.Anything, mock.Anything)
}

func TestCachedStore_FindByShortURL_MissFillsCache(t *testing.T) {
	// Arrange
	cached, store, cache := setupCachedStore(t)
	rec := domain.NewRecord(domain.Owner{ID: 1}, "https://a.example", "https://s.test/a", "hash")
	_, err := store.Insert(context.Background(), rec)
	require.NoError(t, err)

	cache.On("GetRecord", mock.Anything, rec.ShortURL).Return(nil, nil)
	cache.On("SetRecord", mock.Anything, mock.MatchedBy(func(r *domain.Record) bool {
		return r.ID == rec.ID
	})).Return(nil)

	// Act
	got, err := cached.FindByShortURL(context.Background(), rec.ShortURL)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	cache.AssertExpectations(t)
}

func TestCachedStore_FindByShortURL_CacheDownFallsThrough(t *testing.T) {
	cached, store, cache := setupCachedStore(t)
	rec := domain.NewRecord(domain.Owner{ID: 1}, "https://a.example", "https://s.test/a", "hash")
	_, err := store.Insert(context.Background(), rec)
	require.NoError(t, err)

	cache.On("GetRecord", mock.Anything, rec.ShortURL).Return(nil, errors.New("connection refused"))
	cache.On("SetRecord", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	got, err := cached.FindByShortURL(context.Background(), rec.ShortURL)

	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
}

func TestCachedStore_FindByShortURL_NotFound(t *testing.T) {
	cached, _, cache := setupCachedStore(t)
	cache.On("GetRecord", mock.Anything, "https://s.test/none").Return(nil, nil)

	_, err := cached.FindByShortURL(context.Background(), "https://s.test/none")

	assert.ErrorIs(t, err, repository.ErrNotFound)
	cache.AssertNotCalled(t, "SetRecord", mock.Anything, mock.Anything)
}

func TestCachedStore_IncrementClickEvicts(t *testing.T) {
	cached, store, cache := setupCachedStore(t)
	rec := domain.NewRecord(domain.Owner{ID: 1}, "https://a.example", "https://s.test/a", "hash")
	_, err := store.Insert(context.Background(), rec)
	require.NoError(t, err)
	cache.On("DeleteByID", mock.Anything, rec.ID).Return(nil)

	ok, err := cached.IncrementClick(context.Background(), rec.ID, time.Now())

	require.NoError(t, err)
	assert.True(t, ok)
	cache.AssertExpectations(t)
}

func TestCachedStore_UpsertEvicts(t *testing.T) {
	cached, _, cache := setupCachedStore(t)
	rec := domain.NewRecord(domain.Owner{ID: 1}, "https://a.example", "https://s.test/a", "hash")
	cache.On("DeleteByShortURL", mock.Anything, rec.ShortURL).Return(nil)

	id, err := cached.UpsertByShortURLAndOwner(context.Background(), rec)

	require.NoError(t, err)
	assert.NotEmpty(t, id)
	cache.AssertExpectations(t)
}
