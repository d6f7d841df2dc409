// Package memory is a process-local RecordStore used when no database is configured
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"shortlink-bot/internal/domain"
	"shortlink-bot/internal/repository"

	"github.com/google/uuid"
)

type clickKey struct {
	recordID   string
	occurredAt int64
}

type Store struct {
	mu      sync.RWMutex
	records map[string]*domain.Record
	order   []string
	clicks  []*domain.ClickEvent
	seen    map[clickKey]struct{}
	closed  bool
}

func NewStore() *Store {
	return &Store{
		records: make(map[string]*domain.Record),
		seen:    make(map[clickKey]struct{}),
	}
}

var _ repository.RecordStore = (*Store)(nil)

func (s *Store) Insert(ctx context.Context, rec *domain.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", repository.ErrStoreUnavailable
	}

	cp := copyRecord(rec)
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	s.records[cp.ID] = cp
	s.order = append(s.order, cp.ID)
	return cp.ID, nil
}

func (s *Store) FindByOwner(ctx context.Context, ownerID int64) ([]*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, repository.ErrStoreUnavailable
	}

	var out []*domain.Record
	for i := len(s.order) - 1; i >= 0; i-- {
		rec := s.records[s.order[i]]
		if rec.OwnerID == ownerID {
			out = append(out, copyRecord(rec))
		}
	}
	return out, nil
}

func (s *Store) FindByShortURL(ctx context.Context, shortURL string) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, repository.ErrStoreUnavailable
	}

	for i := len(s.order) - 1; i >= 0; i-- {
		rec := s.records[s.order[i]]
		if rec.ShortURL == shortURL {
			return copyRecord(rec), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) FindByShortURLAndOwner(ctx context.Context, shortURL string, ownerID int64) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, repository.ErrStoreUnavailable
	}

	for i := len(s.order) - 1; i >= 0; i-- {
		rec := s.records[s.order[i]]
		if rec.ShortURL == shortURL && rec.OwnerID == ownerID {
			return copyRecord(rec), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) IncrementClick(ctx context.Context, recordID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, repository.ErrStoreUnavailable
	}

	rec, ok := s.records[recordID]
	if !ok {
		return false, nil
	}
	rec.RegisterClick(at.UTC())
	return true, nil
}

func (s *Store) InsertClickEvent(ctx context.Context, ev *domain.ClickEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return repository.ErrStoreUnavailable
	}

	cp := *ev
	s.clicks = append(s.clicks, &cp)
	s.seen[clickKey{ev.RecordID, ev.OccurredAt.UnixNano()}] = struct{}{}
	return nil
}

func (s *Store) UpsertByShortURLAndOwner(ctx context.Context, rec *domain.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", repository.ErrStoreUnavailable
	}

	for i := len(s.order) - 1; i >= 0; i-- {
		id := s.order[i]
		existing := s.records[id]
		if existing.ShortURL == rec.ShortURL && existing.OwnerID == rec.OwnerID {
			cp := copyRecord(rec)
			cp.ID = id
			s.records[id] = cp
			return id, nil
		}
	}

	cp := copyRecord(rec)
	if cp.ID == "" || s.records[cp.ID] != nil {
		cp.ID = uuid.NewString()
	}
	s.records[cp.ID] = cp
	s.order = append(s.order, cp.ID)
	return cp.ID, nil
}

func (s *Store) UpsertClickEvent(ctx context.Context, ev *domain.ClickEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return repository.ErrStoreUnavailable
	}

	key := clickKey{ev.RecordID, ev.OccurredAt.UnixNano()}
	if _, dup := s.seen[key]; dup {
		return nil
	}
	cp := *ev
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	s.clicks = append(s.clicks, &cp)
	s.seen[key] = struct{}{}
	return nil
}

func (s *Store) ListAll(ctx context.Context) ([]*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, repository.ErrStoreUnavailable
	}

	out := make([]*domain.Record, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, copyRecord(s.records[s.order[i]]))
	}
	return out, nil
}

func (s *Store) FindClicks(ctx context.Context, recordIDs []string) ([]*domain.ClickEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, repository.ErrStoreUnavailable
	}

	want := make(map[string]struct{}, len(recordIDs))
	for _, id := range recordIDs {
		want[id] = struct{}{}
	}

	var out []*domain.ClickEvent
	for _, ev := range s.clicks {
		if _, ok := want[ev.RecordID]; ok {
			cp := *ev
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return repository.ErrStoreUnavailable
	}
	return nil
}

// Close makes every later call fail with ErrStoreUnavailable
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func copyRecord(r *domain.Record) *domain.Record {
	cp := *r
	if r.LastClickedAt != nil {
		t := *r.LastClickedAt
		cp.LastClickedAt = &t
	}
	if r.RestoredAt != nil {
		t := *r.RestoredAt
		cp.RestoredAt = &t
	}
	return &cp
}
