package domain

import (
	"time"

	"github.com/google/uuid"
)

// Source labels for click events
const (
	SourceSimulated = "simulated"
	SourceAPI       = "api"
)

// ClickEvent is one recorded click on a short link.
// RecordID is a lookup key only; deleting a record never touches its events.
type ClickEvent struct {
	ID         string    `json:"id"`
	RecordID   string    `json:"record_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Source     string    `json:"source"`
}

// NewClickEvent creates a click event stamped with the current time
func NewClickEvent(recordID, source string) *ClickEvent {
	if source == "" {
		source = SourceSimulated
	}
	return &ClickEvent{
		ID:         uuid.NewString(),
		RecordID:   recordID,
		OccurredAt: time.Now().UTC(),
		Source:     source,
	}
}
