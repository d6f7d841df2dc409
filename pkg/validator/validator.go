package validator

import (
	"net"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxURLLength caps accepted long URLs
const MaxURLLength = 2048

var validate = validator.New()

// NormalizeURL trims whitespace and adds https:// when the input has no scheme,
// so "www.example.com/a/b" becomes "https://www.example.com/a/b".
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	return s
}

// ValidateURL checks a long URL before any provider is tried
func ValidateURL(urlStr string) error {
	urlStr = strings.TrimSpace(urlStr)

	if urlStr == "" {
		return ErrEmptyURL
	}
	if len(urlStr) > MaxURLLength {
		return ErrTooLong
	}

	if err := validate.Var(urlStr, "url"); err != nil {
		return ErrInvalidURL
	}

	if err := checkParts(urlStr); err != nil {
		return err
	}
	return checkHostname(urlStr)
}

// ValidateShortURL is the acceptance predicate for provider results.
// Fallback output must pass it too.
func ValidateShortURL(short string) error {
	short = strings.TrimSpace(short)
	if short == "" {
		return ErrEmptyURL
	}
	if !strings.HasPrefix(short, "http://") && !strings.HasPrefix(short, "https://") {
		return ErrInvalidScheme
	}
	return checkParts(short)
}

func checkParts(urlStr string) error {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return ErrInvalidURL
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return ErrInvalidScheme
	}

	if parsedURL.Host == "" {
		return ErrInvalidHost
	}

	return nil
}

// checkHostname accepts a dotted hostname with an alphabetic TLD or an IP
// literal, so a bare word like "thanks" is rejected.
func checkHostname(urlStr string) error {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return ErrInvalidURL
	}

	host := parsedURL.Hostname()
	if net.ParseIP(host) != nil {
		return nil
	}
	if err := validate.Var(host, "fqdn"); err != nil {
		return ErrInvalidHost
	}
	return nil
}
