package validator

import "errors"

var (
	ErrEmptyURL      = errors.New("URL cannot be empty")
	ErrInvalidURL    = errors.New("invalid URL format")
	ErrInvalidScheme = errors.New("URL must use http or https scheme")
	ErrInvalidHost   = errors.New("URL must have a valid host")
	ErrTooLong       = errors.New("URL is too long")
)

// IsValidationError reports whether err came from this package
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyURL) ||
		errors.Is(err, ErrInvalidURL) ||
		errors.Is(err, ErrInvalidScheme) ||
		errors.Is(err, ErrInvalidHost) ||
		errors.Is(err, ErrTooLong)
}
