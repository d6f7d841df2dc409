// Package provider holds the adapters that turn a long URL into a short one
// through third-party shortening services, plus the local fallback generator.
package provider

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrBadStatus     = errors.New("unexpected response status")
	ErrMalformedBody = errors.New("malformed response body")
	ErrUnknown       = errors.New("unknown provider")
)

// Provider is one shortening service.
// Implementations do not retry; the caller owns the retry policy.
type Provider interface {
	Name() string
	Shorten(ctx context.Context, longURL string) (string, error)
}

// Error is returned by every adapter failure
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(name string, err error) error {
	return &Error{Provider: name, Err: err}
}
