package backup

import (
	"context"
	"io"
	"log/slog"

	"shortlink-bot/internal/service"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/mock"
)

// ==================== MOCKS ====================

type MockExporter struct {
	mock.Mock
}

func (m *MockExporter) ExportSnapshot(ctx context.Context, ownerID *int64) (*service.Snapshot, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Snapshot), args.Error(1)
}

type MockSink struct {
	mock.Mock
	name string
}

func (m *MockSink) Name() string { return m.name }

func (m *MockSink) Put(ctx context.Context, snap *service.Snapshot) error {
	return m.Called(ctx, snap).Error(0)
}

type MockPutObject struct {
	mock.Mock
}

func (m *MockPutObject) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

type MockDocumentSender struct {
	mock.Mock
}

func (m *MockDocumentSender) SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error {
	return m.Called(ctx, chatID, filename, data, caption).Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
