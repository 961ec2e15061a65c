package discovery

import "errors"

// Common errors returned by the discovery package.
var (
	// ErrNoRoot is returned when no manifest exists at or above a path.
	ErrNoRoot = errors.New("no project root found (cortex.json or package.json)")

	// ErrInvalidPath is returned when a path is invalid or inaccessible.
	ErrInvalidPath = errors.New("invalid or inaccessible path")
)
