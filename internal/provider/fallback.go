package provider

import (
	"strings"

	"github.com/google/uuid"
)

const (
	DefaultFallbackDomain = "https://sl.local"
	fallbackTokenLength   = 10
)

// Fallback synthesizes a short-URL-shaped string when every provider failed.
// Output looks like any other short URL; only the record's provider name tells
// them apart.
type Fallback struct {
	domain string
}

func NewFallback(domain string) *Fallback {
	domain = strings.TrimRight(strings.TrimSpace(domain), "/")
	if domain == "" {
		domain = DefaultFallbackDomain
	}
	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	return &Fallback{domain: domain}
}

// Synthesize never fails
func (f *Fallback) Synthesize(longURL string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:fallbackTokenLength]
	return f.domain + "/" + token
}

// Domain returns the scheme and host used for synthesized links
func (f *Fallback) Domain() string {
	return f.domain
}
