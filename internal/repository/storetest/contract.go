// Package storetest holds behaviour checks every RecordStore must pass
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"shortlink-bot/internal/domain"
	"shortlink-bot/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises store. newStore must return an empty store on every call.
func Run(t *testing.T, newStore func(t *testing.T) repository.RecordStore) {
	t.Helper()

	t.Run("insert and find by owner", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		first := domain.NewRecord(domain.Owner{ID: 1, Name: "ann"}, "https://a.example", "https://s.test/a", "tinyurl")
		second := domain.NewRecord(domain.Owner{ID: 1, Name: "ann"}, "https://b.example", "https://s.test/b", "isgd")
		second.CreatedAt = first.CreatedAt.Add(time.Second)
		other := domain.NewRecord(domain.Owner{ID: 2, Name: "bob"}, "https://c.example", "https://s.test/c", "hash")

		for _, rec := range []*domain.Record{first, second, other} {
			id, err := store.Insert(ctx, rec)
			require.NoError(t, err)
			assert.Equal(t, rec.ID, id)
		}

		records, err := store.FindByOwner(ctx, 1)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, second.ID, records[0].ID)
		assert.Equal(t, first.ID, records[1].ID)
		assert.Equal(t, "ann", records[0].OwnerName)

		none, err := store.FindByOwner(ctx, 99)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("find by short url", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		rec := domain.NewRecord(domain.Owner{ID: 1}, "https://a.example", "https://s.test/x", "cleanuri")
		_, err := store.Insert(ctx, rec)
		require.NoError(t, err)

		got, err := store.FindByShortURL(ctx, "https://s.test/x")
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, "cleanuri", got.Provider)

		_, err = store.FindByShortURL(ctx, "https://s.test/missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("increment click isolates records", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		a := domain.NewRecord(domain.Owner{ID: 1}, "https://a.example", "https://s.test/a", "tinyurl")
		b := domain.NewRecord(domain.Owner{ID: 1}, "https://b.example", "https://s.test/b", "tinyurl")
		_, err := store.Insert(ctx, a)
		require.NoError(t, err)
		_, err = store.Insert(ctx, b)
		require.NoError(t, err)

		at := time.Now().UTC().Truncate(time.Millisecond)
		ok, err := store.IncrementClick(ctx, a.ID, at)
		require.NoError(t, err)
		assert.True(t, ok)

		gotA, err := store.FindByShortURL(ctx, a.ShortURL)
		require.NoError(t, err)
		gotB, err := store.FindByShortURL(ctx, b.ShortURL)
		require.NoError(t, err)

		assert.Equal(t, int64(1), gotA.Clicks)
		require.NotNil(t, gotA.LastClickedAt)
		assert.WithinDuration(t, at, *gotA.LastClickedAt, time.Millisecond)
		assert.Equal(t, int64(0), gotB.Clicks)
		assert.Nil(t, gotB.LastClickedAt)

		ok, err = store.IncrementClick(ctx, "00000000-0000-0000-0000-000000000000", at)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		rec := domain.NewRecord(domain.Owner{ID: 3}, "https://a.example", "https://s.test/c", "hash")
		_, err := store.Insert(ctx, rec)
		require.NoError(t, err)

		const n = 20
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.IncrementClick(ctx, rec.ID, time.Now())
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := store.FindByShortURL(ctx, rec.ShortURL)
		require.NoError(t, err)
		assert.Equal(t, int64(n), got.Clicks)
	})

	t.Run("upsert by short url and owner", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		rec := domain.NewRecord(domain.Owner{ID: 5}, "https://a.example", "https://s.test/u", "isgd")
		_, err := store.Insert(ctx, rec)
		require.NoError(t, err)

		restored := time.Now().UTC().Truncate(time.Millisecond)
		replacement := *rec
		replacement.ID = "ignored-id"
		replacement.Clicks = 7
		replacement.RestoredAt = &restored

		id, err := store.UpsertByShortURLAndOwner(ctx, &replacement)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, id)

		records, err := store.FindByOwner(ctx, 5)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, int64(7), records[0].Clicks)
		require.NotNil(t, records[0].RestoredAt)

		// same short url, different owner: new row
		foreign := *rec
		foreign.ID = ""
		foreign.OwnerID = 6
		id, err = store.UpsertByShortURLAndOwner(ctx, &foreign)
		require.NoError(t, err)
		assert.NotEqual(t, rec.ID, id)

		all, err := store.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("click events", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		rec := domain.NewRecord(domain.Owner{ID: 1}, "https://a.example", "https://s.test/e", "tinyurl")
		_, err := store.Insert(ctx, rec)
		require.NoError(t, err)

		ev := domain.NewClickEvent(rec.ID, domain.SourceSimulated)
		ev.OccurredAt = ev.OccurredAt.Truncate(time.Millisecond)
		require.NoError(t, store.InsertClickEvent(ctx, ev))

		dup := domain.NewClickEvent(rec.ID, domain.SourceAPI)
		dup.OccurredAt = ev.OccurredAt
		require.NoError(t, store.UpsertClickEvent(ctx, dup))

		later := domain.NewClickEvent(rec.ID, domain.SourceAPI)
		later.OccurredAt = ev.OccurredAt.Add(time.Minute)
		require.NoError(t, store.UpsertClickEvent(ctx, later))

		clicks, err := store.FindClicks(ctx, []string{rec.ID})
		require.NoError(t, err)
		require.Len(t, clicks, 2)
		assert.Equal(t, ev.ID, clicks[0].ID)
		assert.Equal(t, later.ID, clicks[1].ID)

		none, err := store.FindClicks(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("live click events sharing a timestamp are all kept", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		rec := domain.NewRecord(domain.Owner{ID: 1}, "https://a.example", "https://s.test/same", "tinyurl")
		_, err := store.Insert(ctx, rec)
		require.NoError(t, err)

		at := time.Now().UTC().Truncate(time.Millisecond)
		first := domain.NewClickEvent(rec.ID, domain.SourceSimulated)
		first.OccurredAt = at
		second := domain.NewClickEvent(rec.ID, domain.SourceSimulated)
		second.OccurredAt = at

		require.NoError(t, store.InsertClickEvent(ctx, first))
		require.NoError(t, store.InsertClickEvent(ctx, second))

		clicks, err := store.FindClicks(ctx, []string{rec.ID})
		require.NoError(t, err)
		assert.Len(t, clicks, 2)
	})

	t.Run("find by short url and owner", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		alice := domain.NewRecord(domain.Owner{ID: 1}, "https://a.example", "https://s.test/shared", "hashlink")
		_, err := store.Insert(ctx, alice)
		require.NoError(t, err)
		bob := domain.NewRecord(domain.Owner{ID: 2}, "https://a.example", "https://s.test/shared", "hashlink")
		bob.CreatedAt = alice.CreatedAt.Add(time.Second)
		_, err = store.Insert(ctx, bob)
		require.NoError(t, err)

		newest, err := store.FindByShortURL(ctx, "https://s.test/shared")
		require.NoError(t, err)
		assert.Equal(t, bob.ID, newest.ID)

		got, err := store.FindByShortURLAndOwner(ctx, "https://s.test/shared", 1)
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)

		_, err = store.FindByShortURLAndOwner(ctx, "https://s.test/shared", 3)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("ping", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.Ping(context.Background()))
	})
}
