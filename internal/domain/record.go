package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// FallbackProvider is the provider name stored on records whose short URL
// was synthesized locally because every configured provider failed.
const FallbackProvider = "fallback"

// LocalIDPrefix marks record ids that were never acknowledged by the store.
const LocalIDPrefix = "local-"

// Owner identifies the chat user a link is shortened for
type Owner struct {
	ID   int64
	Name string
}

// Record is one shortening outcome.
// Everything except Clicks and LastClickedAt is fixed at creation; a snapshot
// restore may overwrite the whole record keyed on (ShortURL, OwnerID).
type Record struct {
	ID            string     `json:"id"`
	OwnerID       int64      `json:"owner_id"`
	OwnerName     string     `json:"owner_name"`
	OriginalURL   string     `json:"original_url"`
	ShortURL      string     `json:"short_url"`
	Provider      string     `json:"provider"`
	Clicks        int64      `json:"clicks"`
	CreatedAt     time.Time  `json:"created_at"`
	LastClickedAt *time.Time `json:"last_clicked_at,omitempty"`
	RestoredAt    *time.Time `json:"restored_at,omitempty"`
}

// NewRecord creates a record with a fresh id and zero clicks
func NewRecord(owner Owner, originalURL, shortURL, provider string) *Record {
	return &Record{
		ID:          uuid.NewString(),
		OwnerID:     owner.ID,
		OwnerName:   owner.Name,
		OriginalURL: originalURL,
		ShortURL:    shortURL,
		Provider:    provider,
		CreatedAt:   time.Now().UTC(),
	}
}

// IsFallback reports whether the short URL was generated locally
func (r *Record) IsFallback() bool {
	return r.Provider == FallbackProvider
}

// IsPersisted reports whether the store acknowledged the record.
// Records created while the store was down carry a local id.
func (r *Record) IsPersisted() bool {
	return !strings.HasPrefix(r.ID, LocalIDPrefix)
}

// MarkTransient replaces the id with a process-local one
func (r *Record) MarkTransient() {
	r.ID = LocalIDPrefix + uuid.NewString()
}

// RegisterClick applies a click to the in-memory copy of the record
func (r *Record) RegisterClick(at time.Time) {
	r.Clicks++
	r.LastClickedAt = &at
}

// Stats aggregates one owner's records
type Stats struct {
	OwnerID              int64          `json:"owner_id"`
	TotalURLs            int            `json:"total_urls"`
	TotalClicks          int64          `json:"total_clicks"`
	AverageClicks        float64        `json:"average_clicks"`
	ProviderDistribution map[string]int `json:"provider_distribution"`
	TopRecord            *Record        `json:"top_record,omitempty"`
}

// GlobalStats aggregates every record in the store
type GlobalStats struct {
	Stats
	Owners int `json:"owners"`
}
