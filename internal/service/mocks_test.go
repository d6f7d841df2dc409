package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"shortlink-bot/internal/domain"
	"shortlink-bot/internal/events"

	"github.com/stretchr/testify/mock"
)

// ==================== MOCKS ====================

// MockProvider is a mock shortening service; its name is fixed at construction
type MockProvider struct {
	mock.Mock
	name string
}

func newMockProvider(name string) *MockProvider {
	return &MockProvider{name: name}
}

func (m *MockProvider) Name() string { return m.name }

func (m *MockProvider) Shorten(ctx context.Context, longURL string) (string, error) {
	args := m.Called(ctx, longURL)
	return args.String(0), args.Error(1)
}

// MockRecordStore is a mock implementation of repository.RecordStore
type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) Insert(ctx context.Context, rec *domain.Record) (string, error) {
	args := m.Called(ctx, rec)
	return args.String(0), args.Error(1)
}

func (m *MockRecordStore) FindByOwner(ctx context.Context, ownerID int64) ([]*domain.Record, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Record), args.Error(1)
}

func (m *MockRecordStore) FindByShortURLAndOwner(ctx context.Context, shortURL string, ownerID int64) (*domain.Record, error) {
	args := m.Called(ctx, shortURL, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Record), args.Error(1)
}

func (m *MockRecordStore) FindByShortURL(ctx context.Context, shortURL string) (*domain.Record, error) {
	args := m.Called(ctx, shortURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Record), args.Error(1)
}

func (m *MockRecordStore) IncrementClick(ctx context.Context, recordID string, at time.Time) (bool, error) {
	args := m.Called(ctx, recordID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockRecordStore) InsertClickEvent(ctx context.Context, ev *domain.ClickEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockRecordStore) UpsertByShortURLAndOwner(ctx context.Context, rec *domain.Record) (string, error) {
	args := m.Called(ctx, rec)
	return args.String(0), args.Error(1)
}

func (m *MockRecordStore) UpsertClickEvent(ctx context.Context, ev *domain.ClickEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockRecordStore) ListAll(ctx context.Context) ([]*domain.Record, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Record), args.Error(1)
}

func (m *MockRecordStore) FindClicks(ctx context.Context, recordIDs []string) ([]*domain.ClickEvent, error) {
	args := m.Called(ctx, recordIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ClickEvent), args.Error(1)
}

func (m *MockRecordStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockRecordStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockPublisher is a mock implementation of events.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, ev events.LinkEvent) error {
	args := m.Called(ctx, subject, ev)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
