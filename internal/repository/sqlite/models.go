package sqlite

import (
	"time"

	"shortlink-bot/internal/domain"
)

type linkRow struct {
	ID            string `gorm:"primaryKey;size:64"`
	OwnerID       int64  `gorm:"not null;index:idx_links_owner"`
	OwnerName     string
	OriginalURL   string    `gorm:"not null"`
	ShortURL      string    `gorm:"not null;index:idx_links_short_owner"`
	Provider      string    `gorm:"not null"`
	Clicks        int64     `gorm:"not null;default:0"`
	CreatedAt     time.Time `gorm:"not null;index:idx_links_owner"`
	LastClickedAt *time.Time
	RestoredAt    *time.Time
}

func (linkRow) TableName() string { return "short_links" }

type clickRow struct {
	ID         string    `gorm:"primaryKey;size:64"`
	RecordID   string    `gorm:"not null;index:idx_click_record_time"`
	OccurredAt time.Time `gorm:"not null;index:idx_click_record_time"`
	Source     string
}

func (clickRow) TableName() string { return "click_events" }

func toLinkRow(r *domain.Record) *linkRow {
	return &linkRow{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		OwnerName:     r.OwnerName,
		OriginalURL:   r.OriginalURL,
		ShortURL:      r.ShortURL,
		Provider:      r.Provider,
		Clicks:        r.Clicks,
		CreatedAt:     r.CreatedAt.UTC(),
		LastClickedAt: utcPtr(r.LastClickedAt),
		RestoredAt:    utcPtr(r.RestoredAt),
	}
}

func (l *linkRow) toDomain() *domain.Record {
	return &domain.Record{
		ID:            l.ID,
		OwnerID:       l.OwnerID,
		OwnerName:     l.OwnerName,
		OriginalURL:   l.OriginalURL,
		ShortURL:      l.ShortURL,
		Provider:      l.Provider,
		Clicks:        l.Clicks,
		CreatedAt:     l.CreatedAt.UTC(),
		LastClickedAt: utcPtr(l.LastClickedAt),
		RestoredAt:    utcPtr(l.RestoredAt),
	}
}

func (c *clickRow) toDomain() *domain.ClickEvent {
	return &domain.ClickEvent{
		ID:         c.ID,
		RecordID:   c.RecordID,
		OccurredAt: c.OccurredAt.UTC(),
		Source:     c.Source,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
