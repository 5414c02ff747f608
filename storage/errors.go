package storage

import "errors"

// Common storage errors.
var (
	// ErrNotFound is returned when a requirement is not stored.
	ErrNotFound = errors.New("requirement not found")
)
