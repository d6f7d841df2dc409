//go:build integration

package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"shortlink-bot/internal/repository"
	"shortlink-bot/internal/repository/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("shortlinks"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrator, err := NewMigrator(dsn, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Close())

	return dsn
}

func TestStore_Contract(t *testing.T) {
	dsn := startPostgres(t)

	storetest.Run(t, func(t *testing.T) repository.RecordStore {
		pool, err := InitDB(context.Background(), dsn, 5, 1, time.Minute)
		require.NoError(t, err)

		_, err = pool.Exec(context.Background(), "TRUNCATE short_links, click_events")
		require.NoError(t, err)

		store := NewStore(pool)
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestStore_ClosedPoolIsUnavailable(t *testing.T) {
	dsn := startPostgres(t)

	pool, err := InitDB(context.Background(), dsn, 2, 1, time.Minute)
	require.NoError(t, err)
	store := NewStore(pool)
	require.NoError(t, store.Close())

	_, err = store.FindByOwner(context.Background(), 1)
	assert.ErrorIs(t, err, repository.ErrStoreUnavailable)
}

func TestMigrator_UpIsIdempotent(t *testing.T) {
	dsn := startPostgres(t)

	migrator, err := NewMigrator(dsn, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer migrator.Close()

	assert.NoError(t, migrator.Up())
}
