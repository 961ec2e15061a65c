package profile

import "errors"

// Common errors returned by the profile store.
var (
	// ErrEmptyKey is returned when a key is empty.
	ErrEmptyKey = errors.New("profile key cannot be empty")

	// ErrInvalidPort is returned when storing a port outside 1..65535.
	ErrInvalidPort = errors.New("invalid port: must be 1-65535")

	// ErrClosed is returned when using a closed store.
	ErrClosed = errors.New("profile store is closed")
)
