package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shortlink-bot/internal/domain"
	"shortlink-bot/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordColumns = `id, owner_id, owner_name, original_url, short_url, provider,
	clicks, created_at, last_clicked_at, restored_at`

// Store is the PostgreSQL RecordStore
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

var _ repository.RecordStore = (*Store)(nil)

func (s *Store) Insert(ctx context.Context, rec *domain.Record) (string, error) {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}

	query := `
		INSERT INTO short_links (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var stored string
	err := s.db.QueryRow(ctx, query,
		id,
		rec.OwnerID,
		rec.OwnerName,
		rec.OriginalURL,
		rec.ShortURL,
		rec.Provider,
		rec.Clicks,
		rec.CreatedAt,
		rec.LastClickedAt,
		rec.RestoredAt,
	).Scan(&stored)
	if err != nil {
		return "", wrapErr("insert record", err)
	}

	return stored, nil
}

func (s *Store) FindByOwner(ctx context.Context, ownerID int64) ([]*domain.Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM short_links
		WHERE owner_id = $1
		ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, wrapErr("find records by owner", err)
	}
	return collectRecords(rows)
}

func (s *Store) FindByShortURL(ctx context.Context, shortURL string) (*domain.Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM short_links
		WHERE short_url = $1
		ORDER BY created_at DESC
		LIMIT 1`

	rec, err := scanRecord(s.db.QueryRow(ctx, query, shortURL))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, shortURL)
		}
		return nil, wrapErr("find record by short url", err)
	}
	return rec, nil
}

func (s *Store) FindByShortURLAndOwner(ctx context.Context, shortURL string, ownerID int64) (*domain.Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM short_links
		WHERE short_url = $1 AND owner_id = $2
		ORDER BY created_at DESC
		LIMIT 1`

	rec, err := scanRecord(s.db.QueryRow(ctx, query, shortURL, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, shortURL)
		}
		return nil, wrapErr("find record by short url and owner", err)
	}
	return rec, nil
}

// IncrementClick runs as a single UPDATE so concurrent clicks are never lost
func (s *Store) IncrementClick(ctx context.Context, recordID string, at time.Time) (bool, error) {
	query := `
		UPDATE short_links
		SET clicks = clicks + 1, last_clicked_at = $2
		WHERE id = $1
	`

	result, err := s.db.Exec(ctx, query, recordID, at.UTC())
	if err != nil {
		return false, wrapErr("increment clicks", err)
	}
	return result.RowsAffected() > 0, nil
}

func (s *Store) InsertClickEvent(ctx context.Context, ev *domain.ClickEvent) error {
	query := `
		INSERT INTO click_events (id, record_id, occurred_at, source)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := s.db.Exec(ctx, query, eventID(ev), ev.RecordID, ev.OccurredAt, ev.Source); err != nil {
		return wrapErr("insert click event", err)
	}
	return nil
}

// UpsertByShortURLAndOwner overwrites the newest row matching (short_url, owner_id)
// inside one transaction, inserting when there is none.
func (s *Store) UpsertByShortURLAndOwner(ctx context.Context, rec *domain.Record) (string, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", wrapErr("begin upsert", err)
	}
	defer tx.Rollback(ctx)

	update := `
		UPDATE short_links SET
			owner_name      = $3,
			original_url    = $4,
			provider        = $5,
			clicks          = $6,
			created_at      = $7,
			last_clicked_at = $8,
			restored_at     = $9
		WHERE id = (
			SELECT id FROM short_links
			WHERE short_url = $1 AND owner_id = $2
			ORDER BY created_at DESC
			LIMIT 1
			FOR UPDATE
		)
		RETURNING id
	`

	var stored string
	err = tx.QueryRow(ctx, update,
		rec.ShortURL,
		rec.OwnerID,
		rec.OwnerName,
		rec.OriginalURL,
		rec.Provider,
		rec.Clicks,
		rec.CreatedAt,
		rec.LastClickedAt,
		rec.RestoredAt,
	).Scan(&stored)

	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows):
		// a snapshot id may already belong to another owner's row
		insert := `
			INSERT INTO short_links (` + recordColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id
		`
		err = tx.QueryRow(ctx, insert,
			uuid.NewString(),
			rec.OwnerID,
			rec.OwnerName,
			rec.OriginalURL,
			rec.ShortURL,
			rec.Provider,
			rec.Clicks,
			rec.CreatedAt,
			rec.LastClickedAt,
			rec.RestoredAt,
		).Scan(&stored)
		if err != nil {
			return "", wrapErr("insert restored record", err)
		}
	default:
		return "", wrapErr("update restored record", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", wrapErr("commit upsert", err)
	}
	return stored, nil
}

// UpsertClickEvent skips events already stored for the same record and instant.
// Only restore dedupes this way; live clicks go through InsertClickEvent.
func (s *Store) UpsertClickEvent(ctx context.Context, ev *domain.ClickEvent) error {
	query := `
		INSERT INTO click_events (id, record_id, occurred_at, source)
		SELECT $1, $2, $3, $4
		WHERE NOT EXISTS (
			SELECT 1 FROM click_events WHERE record_id = $2 AND occurred_at = $3
		)
		ON CONFLICT (id) DO NOTHING
	`

	if _, err := s.db.Exec(ctx, query, eventID(ev), ev.RecordID, ev.OccurredAt, ev.Source); err != nil {
		return wrapErr("upsert click event", err)
	}
	return nil
}

func (s *Store) ListAll(ctx context.Context) ([]*domain.Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM short_links
		ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, wrapErr("list records", err)
	}
	return collectRecords(rows)
}

func (s *Store) FindClicks(ctx context.Context, recordIDs []string) ([]*domain.ClickEvent, error) {
	if len(recordIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, record_id, occurred_at, source
		FROM click_events
		WHERE record_id = ANY($1)
		ORDER BY occurred_at
	`

	rows, err := s.db.Query(ctx, query, recordIDs)
	if err != nil {
		return nil, wrapErr("find click events", err)
	}
	defer rows.Close()

	var events []*domain.ClickEvent
	for rows.Next() {
		ev := &domain.ClickEvent{}
		if err := rows.Scan(&ev.ID, &ev.RecordID, &ev.OccurredAt, &ev.Source); err != nil {
			return nil, fmt.Errorf("failed to scan click event: %w", err)
		}
		ev.OccurredAt = ev.OccurredAt.UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate click events", err)
	}
	return events, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return wrapErr("ping database", s.db.Ping(ctx))
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

func scanRecord(row pgx.Row) (*domain.Record, error) {
	rec := &domain.Record{}
	err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.OwnerName,
		&rec.OriginalURL,
		&rec.ShortURL,
		&rec.Provider,
		&rec.Clicks,
		&rec.CreatedAt,
		&rec.LastClickedAt,
		&rec.RestoredAt,
	)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func collectRecords(rows pgx.Rows) ([]*domain.Record, error) {
	defer rows.Close()

	var records []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate records", err)
	}
	return records, nil
}

func eventID(ev *domain.ClickEvent) string {
	if ev.ID == "" {
		return uuid.NewString()
	}
	return ev.ID
}
