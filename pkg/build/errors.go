package build

import (
	"errors"

	"github.com/0xmhha/cortex-watch/pkg/discovery"
)

// Common errors returned by the build package.
var (
	// ErrEmptyCommand is returned when no build command is configured.
	ErrEmptyCommand = errors.New("build command is empty")

	// ErrInvalidCommand is returned when the command cannot be split.
	ErrInvalidCommand = errors.New("build command is invalid")

	// ErrInvalidArgs is returned when build arguments cannot be parsed.
	ErrInvalidArgs = errors.New("invalid build arguments")

	// ErrNoRoot is returned when the --cwd path is not inside a project.
	ErrNoRoot = discovery.ErrNoRoot
)
