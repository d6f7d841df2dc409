package service

import "errors"

var (
	// ErrInvalidSnapshot is returned when an uploaded snapshot cannot be read
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrNotPersisted is returned by Shorten in strict mode when the store rejected the record
	ErrNotPersisted = errors.New("record not persisted")
)
