// Package events publishes link lifecycle notifications for downstream consumers
package events

import (
	"context"
	"time"

	"shortlink-bot/internal/domain"
)

const (
	SubjectLinkCreated = "links.created"
	SubjectLinkClicked = "links.clicked"
	SubjectRestored    = "links.restored"
)

// LinkEvent is the payload of every subject
type LinkEvent struct {
	RecordID   string    `json:"record_id"`
	OwnerID    int64     `json:"owner_id"`
	ShortURL   string    `json:"short_url"`
	Provider   string    `json:"provider,omitempty"`
	Clicks     int64     `json:"clicks"`
	Persisted  bool      `json:"persisted"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewLinkEvent(rec *domain.Record) LinkEvent {
	return LinkEvent{
		RecordID:   rec.ID,
		OwnerID:    rec.OwnerID,
		ShortURL:   rec.ShortURL,
		Provider:   rec.Provider,
		Clicks:     rec.Clicks,
		Persisted:  rec.IsPersisted(),
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events. Delivery is best effort; callers log errors and move on.
type Publisher interface {
	Publish(ctx context.Context, subject string, ev LinkEvent) error
	Close() error
}

// Nop drops every event
type Nop struct{}

func (Nop) Publish(context.Context, string, LinkEvent) error { return nil }
func (Nop) Close() error                                      { return nil }
