package repository

import (
	"context"
	"errors"
	"time"

	"shortlink-bot/internal/domain"
)

var (
	// ErrStoreUnavailable means the backing store could not be reached.
	// Callers decide whether to degrade or fail.
	ErrStoreUnavailable = errors.New("record store unavailable")

	ErrNotFound = errors.New("record not found")
)

// RecordStore persists short link records and their click events.
// Implementations provide their own concurrency control; callers add no locking.
type RecordStore interface {
	// Insert stores a new record and returns its id
	Insert(ctx context.Context, rec *domain.Record) (string, error)

	// FindByOwner returns an owner's records, newest first
	FindByOwner(ctx context.Context, ownerID int64) ([]*domain.Record, error)

	// FindByShortURL returns the newest record carrying shortURL, or ErrNotFound
	FindByShortURL(ctx context.Context, shortURL string) (*domain.Record, error)

	// FindByShortURLAndOwner is FindByShortURL restricted to one owner's records.
	// Short URLs are not unique across owners: deterministic providers hand
	// every owner the same code for the same long URL.
	FindByShortURLAndOwner(ctx context.Context, shortURL string, ownerID int64) (*domain.Record, error)

	// IncrementClick bumps the click counter and sets last_clicked_at.
	// It reports false when no record has the id.
	IncrementClick(ctx context.Context, recordID string, at time.Time) (bool, error)

	InsertClickEvent(ctx context.Context, ev *domain.ClickEvent) error

	// UpsertByShortURLAndOwner overwrites the record matching (short_url, owner_id)
	// or inserts it. It returns the stored id. Used by snapshot restore only.
	UpsertByShortURLAndOwner(ctx context.Context, rec *domain.Record) (string, error)

	// UpsertClickEvent inserts the event unless one already exists for
	// (record_id, occurred_at)
	UpsertClickEvent(ctx context.Context, ev *domain.ClickEvent) error

	ListAll(ctx context.Context) ([]*domain.Record, error)

	// FindClicks returns events for the given records ordered by occurred_at
	FindClicks(ctx context.Context, recordIDs []string) ([]*domain.ClickEvent, error)

	Ping(ctx context.Context) error
	Close() error
}
