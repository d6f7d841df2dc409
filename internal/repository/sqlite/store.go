// Package sqlite keeps records in a local SQLite file through gorm
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shortlink-bot/internal/domain"
	"shortlink-bot/internal/repository"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

var _ repository.RecordStore = (*Store)(nil)

// Open opens (creating if needed) the database at dsn and migrates the schema.
// SQLite has one writer, so the pool is capped at a single connection.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if db.Migrator().HasIndex(&clickRow{}, "uq_click_record_time") {
		if err := db.Migrator().DropIndex(&clickRow{}, "uq_click_record_time"); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to drop click event index: %w", err)
		}
	}
	if err := db.AutoMigrate(&linkRow{}, &clickRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Insert(ctx context.Context, rec *domain.Record) (string, error) {
	row := toLinkRow(rec)
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return "", wrapErr("insert record", err)
	}
	return row.ID, nil
}

func (s *Store) FindByOwner(ctx context.Context, ownerID int64) ([]*domain.Record, error) {
	var rows []linkRow
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapErr("find records by owner", err)
	}
	return toRecords(rows), nil
}

func (s *Store) FindByShortURL(ctx context.Context, shortURL string) (*domain.Record, error) {
	var row linkRow
	err := s.db.WithContext(ctx).
		Where("short_url = ?", shortURL).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, shortURL)
		}
		return nil, wrapErr("find record by short url", err)
	}
	return row.toDomain(), nil
}

func (s *Store) FindByShortURLAndOwner(ctx context.Context, shortURL string, ownerID int64) (*domain.Record, error) {
	var row linkRow
	err := s.db.WithContext(ctx).
		Where("short_url = ? AND owner_id = ?", shortURL, ownerID).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, shortURL)
		}
		return nil, wrapErr("find record by short url and owner", err)
	}
	return row.toDomain(), nil
}

func (s *Store) IncrementClick(ctx context.Context, recordID string, at time.Time) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&linkRow{}).
		Where("id = ?", recordID).
		Updates(map[string]any{
			"clicks":          gorm.Expr("clicks + 1"),
			"last_clicked_at": at.UTC(),
		})
	if result.Error != nil {
		return false, wrapErr("increment clicks", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) InsertClickEvent(ctx context.Context, ev *domain.ClickEvent) error {
	row := &clickRow{
		ID:         ev.ID,
		RecordID:   ev.RecordID,
		OccurredAt: ev.OccurredAt.UTC(),
		Source:     ev.Source,
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return wrapErr("insert click event", err)
	}
	return nil
}

func (s *Store) UpsertByShortURLAndOwner(ctx context.Context, rec *domain.Record) (string, error) {
	var stored string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing linkRow
		err := tx.Where("short_url = ? AND owner_id = ?", rec.ShortURL, rec.OwnerID).
			Order("created_at DESC").
			First(&existing).Error

		row := toLinkRow(rec)
		switch {
		case err == nil:
			row.ID = existing.ID
			if err := tx.Select("*").Save(row).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			row.ID = uuid.NewString()
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		default:
			return err
		}

		stored = row.ID
		return nil
	})
	if err != nil {
		return "", wrapErr("upsert record", err)
	}
	return stored, nil
}

func (s *Store) UpsertClickEvent(ctx context.Context, ev *domain.ClickEvent) error {
	row := &clickRow{
		ID:         ev.ID,
		RecordID:   ev.RecordID,
		OccurredAt: ev.OccurredAt.UTC(),
		Source:     ev.Source,
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&clickRow{}).
			Where("record_id = ? AND occurred_at = ?", row.RecordID, row.OccurredAt).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
	})
	if err != nil {
		return wrapErr("upsert click event", err)
	}
	return nil
}

func (s *Store) ListAll(ctx context.Context) ([]*domain.Record, error) {
	var rows []linkRow
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, wrapErr("list records", err)
	}
	return toRecords(rows), nil
}

func (s *Store) FindClicks(ctx context.Context, recordIDs []string) ([]*domain.ClickEvent, error) {
	if len(recordIDs) == 0 {
		return nil, nil
	}

	var rows []clickRow
	err := s.db.WithContext(ctx).
		Where("record_id IN ?", recordIDs).
		Order("occurred_at").
		Find(&rows).Error
	if err != nil {
		return nil, wrapErr("find click events", err)
	}

	events := make([]*domain.ClickEvent, 0, len(rows))
	for i := range rows {
		events = append(events, rows[i].toDomain())
	}
	return events, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return wrapErr("get sqlite handle", err)
	}
	return wrapErr("ping sqlite", sqlDB.PingContext(ctx))
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRecords(rows []linkRow) []*domain.Record {
	records := make([]*domain.Record, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].toDomain())
	}
	return records
}

// wrapErr marks every sqlite failure as unavailability: a local file that
// cannot be written is indistinguishable from a down server for callers.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w: %w", op, repository.ErrStoreUnavailable, err)
}
