package bot

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"shortlink-bot/internal/domain"
	"shortlink-bot/internal/service"

	"github.com/stretchr/testify/mock"
)

// ==================== MOCKS ====================

type sentDocument struct {
	chatID   int64
	filename string
	data     []byte
	caption  string
}

// fakeMessenger records every outbound message
type fakeMessenger struct {
	mu    sync.Mutex
	texts []string
	docs  []sentDocument
	err   error
}

func (f *fakeMessenger) SendText(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.err
}

func (f *fakeMessenger) SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.docs = append(f.docs, sentDocument{chatID: chatID, filename: filename, data: data, caption: caption})
	return nil
}

func (f *fakeMessenger) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

type MockShortener struct {
	mock.Mock
}

func (m *MockShortener) Shorten(ctx context.Context, rawURL string, owner domain.Owner) (*domain.Record, error) {
	args := m.Called(ctx, rawURL, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Record), args.Error(1)
}

func (m *MockShortener) RecordOwnerClick(ctx context.Context, ownerID int64, shortURL, source string) (*domain.Record, error) {
	args := m.Called(ctx, ownerID, shortURL, source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Record), args.Error(1)
}

func (m *MockShortener) ProviderStatus() []service.ProviderStatus {
	return m.Called().Get(0).([]service.ProviderStatus)
}

func (m *MockShortener) ResetFailed() int {
	return m.Called().Int(0)
}

func (m *MockShortener) Fallbacks() int64 {
	return m.Called().Get(0).(int64)
}

type MockAssembler struct {
	mock.Mock
}

func (m *MockAssembler) Links(ctx context.Context, ownerID int64) []*domain.Record {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]*domain.Record)
}

func (m *MockAssembler) ComputeStats(ctx context.Context, ownerID int64) domain.Stats {
	return m.Called(ctx, ownerID).Get(0).(domain.Stats)
}

func (m *MockAssembler) GlobalStats(ctx context.Context) (domain.GlobalStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.GlobalStats), args.Error(1)
}

func (m *MockAssembler) ExportSnapshot(ctx context.Context, ownerID *int64) (*service.Snapshot, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Snapshot), args.Error(1)
}

func (m *MockAssembler) ImportSnapshot(ctx context.Context, ownerID int64, blob []byte) (service.ImportResult, error) {
	args := m.Called(ctx, ownerID, blob)
	return args.Get(0).(service.ImportResult), args.Error(1)
}

type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Int(1), args.Get(2).(time.Time), args.Error(3)
}

func (m *MockLimiter) MaxRequests() int {
	return m.Called().Int(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
