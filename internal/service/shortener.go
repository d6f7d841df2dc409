package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"shortlink-bot/internal/domain"
	"shortlink-bot/internal/events"
	"shortlink-bot/internal/metrics"
	"shortlink-bot/internal/provider"
	"shortlink-bot/internal/repository"
	"shortlink-bot/pkg/validator"
)

// Order is how providers are sequenced for each call
type Order string

const (
	OrderFixed  Order = "fixed"
	OrderRandom Order = "random"
)

// Synthesizer produces a short URL without any network call
type Synthesizer interface {
	Synthesize(longURL string) string
}

type ShortenerOptions struct {
	Order Order

	// StrictPersistence makes Shorten fail when the record could not be stored
	// instead of returning it with a process-local id
	StrictPersistence bool
}

// ProviderStatus is a point-in-time view of one provider
type ProviderStatus struct {
	Name      string `json:"name"`
	Successes int64  `json:"successes"`
	Failed    bool   `json:"failed"`
}

// Shortener tries providers in turn and falls back to a local short URL.
// A provider that fails once is skipped for the rest of the process lifetime
// unless ResetFailed is called.
type Shortener struct {
	providers []provider.Provider
	fallback  Synthesizer
	store     repository.RecordStore
	publisher events.Publisher
	logger    *slog.Logger
	opts      ShortenerOptions

	shuffle func(n int, swap func(i, j int))

	mu        sync.Mutex
	failed    map[string]struct{}
	successes map[string]int64
	fallbacks int64
}

func NewShortener(
	providers []provider.Provider,
	fallback Synthesizer,
	store repository.RecordStore,
	publisher events.Publisher,
	logger *slog.Logger,
	opts ShortenerOptions,
) *Shortener {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if opts.Order == "" {
		opts.Order = OrderFixed
	}
	return &Shortener{
		providers: providers,
		fallback:  fallback,
		store:     store,
		publisher: publisher,
		logger:    logger.With("component", "shortener"),
		opts:      opts,
		shuffle:   rand.Shuffle,
		failed:    make(map[string]struct{}),
		successes: make(map[string]int64),
	}
}

// Shorten returns exactly one record per call.
// The only errors are validation failures, raised before any provider is tried,
// and store failures when StrictPersistence is set.
func (s *Shortener) Shorten(ctx context.Context, rawURL string, owner domain.Owner) (*domain.Record, error) {
	longURL := validator.NormalizeURL(rawURL)
	if err := validator.ValidateURL(longURL); err != nil {
		return nil, err
	}

	rec := s.tryProviders(ctx, longURL, owner)
	if rec == nil {
		short := s.fallback.Synthesize(longURL)
		rec = domain.NewRecord(owner, longURL, short, domain.FallbackProvider)

		s.mu.Lock()
		s.fallbacks++
		s.mu.Unlock()

		s.logger.Warn("all providers failed, using fallback",
			"owner_id", owner.ID,
			"short_url", short,
		)
	}

	if err := s.persist(ctx, rec); err != nil {
		return nil, err
	}

	metrics.RecordShortening(rec.Provider)
	s.publish(ctx, events.SubjectLinkCreated, rec)

	return rec, nil
}

func (s *Shortener) tryProviders(ctx context.Context, longURL string, owner domain.Owner) *domain.Record {
	for _, p := range s.sequence() {
		name := p.Name()
		if s.isFailed(name) {
			continue
		}

		start := time.Now()
		short, err := p.Shorten(ctx, longURL)
		metrics.ProviderAttemptDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

		if err == nil {
			if verr := validator.ValidateShortURL(short); verr != nil {
				err = &provider.Error{Provider: name, Err: fmt.Errorf("%w: %q", verr, short)}
			}
		}

		if err != nil {
			// the caller gave up; that says nothing about the provider
			if ctx.Err() != nil {
				s.logger.Warn("shorten cancelled", "provider", name, "error", ctx.Err())
				return nil
			}
			s.markFailed(name)
			metrics.RecordProviderFailure(name)
			s.logger.Warn("provider failed",
				"provider", name,
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err,
			)
			continue
		}

		s.mu.Lock()
		s.successes[name]++
		s.mu.Unlock()

		return domain.NewRecord(owner, longURL, short, name)
	}
	return nil
}

func (s *Shortener) persist(ctx context.Context, rec *domain.Record) error {
	id, err := s.store.Insert(ctx, rec)
	if err == nil {
		rec.ID = id
		return nil
	}

	metrics.RecordStoreError("insert")
	if s.opts.StrictPersistence {
		return fmt.Errorf("%w: %w", ErrNotPersisted, err)
	}

	rec.MarkTransient()
	s.logger.Error("failed to persist record, returning transient id",
		"record_id", rec.ID,
		"short_url", rec.ShortURL,
		"error", err,
	)
	return nil
}

// sequence returns the providers in the order to try for one call
func (s *Shortener) sequence() []provider.Provider {
	seq := make([]provider.Provider, len(s.providers))
	copy(seq, s.providers)
	if s.opts.Order == OrderRandom {
		s.shuffle(len(seq), func(i, j int) { seq[i], seq[j] = seq[j], seq[i] })
	}
	return seq
}

func (s *Shortener) isFailed(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, failed := s.failed[name]
	return failed
}

func (s *Shortener) markFailed(name string) {
	s.mu.Lock()
	s.failed[name] = struct{}{}
	n := len(s.failed)
	s.mu.Unlock()
	metrics.ProvidersFailed.Set(float64(n))
}

// ResetFailed makes every provider eligible again and returns how many were skipped
func (s *Shortener) ResetFailed() int {
	s.mu.Lock()
	n := len(s.failed)
	s.failed = make(map[string]struct{})
	s.mu.Unlock()

	metrics.ProvidersFailed.Set(0)
	s.logger.Info("provider failures cleared", "count", n)
	return n
}

// ProviderStatus lists providers in configured order
func (s *Shortener) ProviderStatus() []ProviderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ProviderStatus, 0, len(s.providers))
	for _, p := range s.providers {
		_, failed := s.failed[p.Name()]
		out = append(out, ProviderStatus{
			Name:      p.Name(),
			Successes: s.successes[p.Name()],
			Failed:    failed,
		})
	}
	return out
}

// Fallbacks is how many records were produced by the fallback generator
func (s *Shortener) Fallbacks() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fallbacks
}

// FailedProviders returns the skipped provider names, sorted
func (s *Shortener) FailedProviders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.failed))
	for name := range s.failed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RecordClick simulates a visit to shortURL, crediting the newest record
// carrying it regardless of owner. Operator tooling only; owners go through
// RecordOwnerClick.
func (s *Shortener) RecordClick(ctx context.Context, shortURL, source string) (*domain.Record, error) {
	rec, err := s.store.FindByShortURL(ctx, shortURL)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			metrics.RecordStoreError("find_by_short_url")
		}
		return nil, fmt.Errorf("failed to find link: %w", err)
	}
	return s.click(ctx, rec, source)
}

// RecordOwnerClick simulates a visit to one of ownerID's own links.
func (s *Shortener) RecordOwnerClick(ctx context.Context, ownerID int64, shortURL, source string) (*domain.Record, error) {
	rec, err := s.store.FindByShortURLAndOwner(ctx, shortURL, ownerID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			metrics.RecordStoreError("find_by_short_url_and_owner")
		}
		return nil, fmt.Errorf("failed to find link: %w", err)
	}
	return s.click(ctx, rec, source)
}

func (s *Shortener) click(ctx context.Context, rec *domain.Record, source string) (*domain.Record, error) {
	now := time.Now().UTC()
	ok, err := s.store.IncrementClick(ctx, rec.ID, now)
	if err != nil {
		metrics.RecordStoreError("increment_click")
		return nil, fmt.Errorf("failed to increment clicks: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, rec.ID)
	}
	rec.RegisterClick(now)

	ev := domain.NewClickEvent(rec.ID, source)
	ev.OccurredAt = now
	if err := s.store.InsertClickEvent(ctx, ev); err != nil {
		metrics.RecordStoreError("insert_click_event")
		s.logger.Warn("failed to store click event", "record_id", rec.ID, "error", err)
	}

	metrics.RecordClickRecorded()
	s.publish(ctx, events.SubjectLinkClicked, rec)

	return rec, nil
}

func (s *Shortener) publish(ctx context.Context, subject string, rec *domain.Record) {
	if err := s.publisher.Publish(ctx, subject, events.NewLinkEvent(rec)); err != nil {
		s.logger.Warn("failed to publish event", "subject", subject, "record_id", rec.ID, "error", err)
	}
}
