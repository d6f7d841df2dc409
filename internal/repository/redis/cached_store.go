package redis

import (
	"context"
	"log/slog"
	"time"

	"shortlink-bot/internal/domain"
	"shortlink-bot/internal/repository"
)

// RecordCache is the subset of Cache used by CachedStore
type RecordCache interface {
	GetRecord(ctx context.Context, shortURL string) (*domain.Record, error)
	SetRecord(ctx context.Context, rec *domain.Record) error
	DeleteByShortURL(ctx context.Context, shortURL string) error
	DeleteByID(ctx context.Context, recordID string) error
}

// CachedStore puts a cache-aside layer in front of FindByShortURL.
// Cache errors are logged and never reach the caller.
type CachedStore struct {
	repository.RecordStore
	cache  RecordCache
	logger *slog.Logger
}

var _ repository.RecordStore = (*CachedStore)(nil)

func NewCachedStore(store repository.RecordStore, cache RecordCache, logger *slog.Logger) *CachedStore {
	return &CachedStore{
		RecordStore: store,
		cache:       cache,
		logger:      logger.With("component", "record_cache"),
	}
}

func (s *CachedStore) FindByShortURL(ctx context.Context, shortURL string) (*domain.Record, error) {
	cached, err := s.cache.GetRecord(ctx, shortURL)
	if err != nil {
		s.logger.Warn("cache read failed", "short_url", shortURL, "error", err)
	}
	if cached != nil {
		return cached, nil
	}

	rec, err := s.RecordStore.FindByShortURL(ctx, shortURL)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetRecord(ctx, rec); err != nil {
		s.logger.Warn("cache write failed", "short_url", shortURL, "error", err)
	}
	return rec, nil
}

func (s *CachedStore) IncrementClick(ctx context.Context, recordID string, at time.Time) (bool, error) {
	ok, err := s.RecordStore.IncrementClick(ctx, recordID, at)
	if err != nil {
		return ok, err
	}
	if err := s.cache.DeleteByID(ctx, recordID); err != nil {
		s.logger.Warn("cache evict failed", "record_id", recordID, "error", err)
	}
	return ok, nil
}

func (s *CachedStore) UpsertByShortURLAndOwner(ctx context.Context, rec *domain.Record) (string, error) {
	id, err := s.RecordStore.UpsertByShortURLAndOwner(ctx, rec)
	if err != nil {
		return id, err
	}
	if err := s.cache.DeleteByShortURL(ctx, rec.ShortURL); err != nil {
		s.logger.Warn("cache evict failed", "short_url", rec.ShortURL, "error", err)
	}
	return id, nil
}

// Insert evicts too: FindByShortURL returns the newest record for a short URL
func (s *CachedStore) Insert(ctx context.Context, rec *domain.Record) (string, error) {
	id, err := s.RecordStore.Insert(ctx, rec)
	if err != nil {
		return id, err
	}
	if err := s.cache.DeleteByShortURL(ctx, rec.ShortURL); err != nil {
		s.logger.Warn("cache evict failed", "short_url", rec.ShortURL, "error", err)
	}
	return id, nil
}
