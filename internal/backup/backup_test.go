package backup

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"shortlink-bot/internal/service"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==================== HELPER FUNCTIONS ====================

func testSnapshot(ts string) *service.Snapshot {
	return &service.Snapshot{
		Filename: "shortlinks_backup_all_" + ts + ".zip",
		Data:     []byte("zip-bytes-" + ts),
		Records:  3,
		Clicks:   7,
	}
}

// ==================== SCHEDULER ====================

func TestScheduler_RunOnce_AllSinksSucceed(t *testing.T) {
	// Arrange
	snap := testSnapshot("20240305_143000")
	exporter := new(MockExporter)
	exporter.On("ExportSnapshot", mock.Anything, (*int64)(nil)).Return(snap, nil)

	first := &MockSink{name: "first"}
	first.On("Put", mock.Anything, snap).Return(nil)
	second := &MockSink{name: "second"}
	second.On("Put", mock.Anything, snap).Return(nil)

	s := NewScheduler(exporter, time.Hour, discardLogger(), first, second)

	// Act
	err := s.RunOnce(context.Background())

	// Assert
	require.NoError(t, err)
	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestScheduler_RunOnce_FailingSinkDoesNotStopOthers(t *testing.T) {
	// Arrange
	snap := testSnapshot("20240305_143000")
	exporter := new(MockExporter)
	exporter.On("ExportSnapshot", mock.Anything, (*int64)(nil)).Return(snap, nil)

	broken := &MockSink{name: "broken"}
	broken.On("Put", mock.Anything, snap).Return(errors.New("disk full"))
	healthy := &MockSink{name: "healthy"}
	healthy.On("Put", mock.Anything, snap).Return(nil)

	s := NewScheduler(exporter, time.Hour, discardLogger(), broken, healthy)

	// Act
	err := s.RunOnce(context.Background())

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Contains(t, err.Error(), "disk full")
	healthy.AssertExpectations(t)
}

func TestScheduler_RunOnce_ExportError(t *testing.T) {
	// Arrange
	exporter := new(MockExporter)
	exporter.On("ExportSnapshot", mock.Anything, (*int64)(nil)).Return(nil, errors.New("store down"))
	sink := &MockSink{name: "dir"}

	s := NewScheduler(exporter, time.Hour, discardLogger(), sink)

	// Act
	err := s.RunOnce(context.Background())

	// Assert
	require.Error(t, err)
	sink.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestScheduler_StartStop_RunsOnTicks(t *testing.T) {
	// Arrange
	var runs atomic.Int32
	snap := testSnapshot("20240305_143000")
	exporter := new(MockExporter)
	exporter.On("ExportSnapshot", mock.Anything, (*int64)(nil)).
		Run(func(mock.Arguments) { runs.Add(1) }).
		Return(snap, nil)

	s := NewScheduler(exporter, 10*time.Millisecond, discardLogger())

	// Act
	s.Start(context.Background())
	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
	after := runs.Load()
	time.Sleep(40 * time.Millisecond)

	// Assert
	assert.Equal(t, after, runs.Load(), "no runs after Stop")
	s.Stop()
}

func TestScheduler_ContextCancelEndsLoop(t *testing.T) {
	// Arrange
	exporter := new(MockExporter)
	exporter.On("ExportSnapshot", mock.Anything, (*int64)(nil)).Return(nil, errors.New("store down"))
	s := NewScheduler(exporter, 5*time.Millisecond, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())

	// Act
	s.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()

	// Assert
	select {
	case <-s.done:
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after context cancel")
	}
	s.Stop()
}

// ==================== DIR SINK ====================

func TestDirSink_WritesArchive(t *testing.T) {
	// Arrange
	dir := filepath.Join(t.TempDir(), "nested")
	sink := NewDirSink(dir, 3)
	snap := testSnapshot("20240305_143000")

	// Act
	err := sink.Put(context.Background(), snap)

	// Assert
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, snap.Filename))
	require.NoError(t, err)
	assert.Equal(t, snap.Data, data)
	_, err = os.Stat(filepath.Join(dir, snap.Filename+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestDirSink_KeepsNewest(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	sink := NewDirSink(dir, 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep me"), 0o600))
	stamps := []string{"20240101_000000", "20240102_000000", "20240103_000000", "20240104_000000"}

	// Act
	for _, ts := range stamps {
		require.NoError(t, sink.Put(context.Background(), testSnapshot(ts)))
	}

	// Assert
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{
		"notes.txt",
		"shortlinks_backup_all_20240103_000000.zip",
		"shortlinks_backup_all_20240104_000000.zip",
	}, names)
}

func TestNewDirSink_KeepAtLeastOne(t *testing.T) {
	sink := NewDirSink(t.TempDir(), 0)
	assert.Equal(t, 1, sink.keep)
}

// ==================== S3 SINK ====================

func TestS3Sink_Put(t *testing.T) {
	// Arrange
	client := new(MockPutObject)
	snap := testSnapshot("20240305_143000")
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		body, _ := io.ReadAll(in.Body)
		return *in.Bucket == "backups" &&
			*in.Key == "shortlinks/"+snap.Filename &&
			*in.ContentType == "application/zip" &&
			string(body) == string(snap.Data)
	})).Return(&s3.PutObjectOutput{}, nil)

	sink := &S3Sink{client: client, bucket: "backups", prefix: "shortlinks/"}

	// Act
	err := sink.Put(context.Background(), snap)

	// Assert
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestS3Sink_PutError(t *testing.T) {
	// Arrange
	client := new(MockPutObject)
	client.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))
	sink := &S3Sink{client: client, bucket: "backups"}

	// Act
	err := sink.Put(context.Background(), testSnapshot("20240305_143000"))

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	assert.Equal(t, "s3", sink.Name())
}

func TestNewS3Sink_StaticCredentials(t *testing.T) {
	sink, err := NewS3Sink(context.Background(), S3Options{
		Bucket:    "backups",
		Prefix:    "p",
		Region:    "us-east-1",
		Endpoint:  "http://localhost:9000",
		AccessKey: "key",
		SecretKey: "secret",
	})

	require.NoError(t, err)
	assert.Equal(t, "backups", sink.bucket)
	assert.NotNil(t, sink.client)
}

// ==================== NOTIFY SINK ====================

func TestNotifySink_SendsDocumentToOperator(t *testing.T) {
	// Arrange
	sender := new(MockDocumentSender)
	snap := testSnapshot("20240305_143000")
	sender.On("SendDocument", mock.Anything, int64(42), snap.Filename, snap.Data,
		"🗄 Automatic backup: 3 links, 7 clicks").Return(nil)
	sink := NewNotifySink(sender, 42)

	// Act
	err := sink.Put(context.Background(), snap)

	// Assert
	require.NoError(t, err)
	sender.AssertExpectations(t)
}
