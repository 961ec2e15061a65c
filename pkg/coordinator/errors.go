package coordinator

import (
	"errors"

	"github.com/thejerf/suture/v4"
)

var (
	// ErrChannelClosed is returned by Run when the manager connection ends.
	ErrChannelClosed = errors.New("watch manager connection closed")

	// ErrClosed is returned for operations on a closed coordinator.
	ErrClosed = errors.New("coordinator is closed")
)

// noRestartErr makes errors.Is(err, suture.ErrDoNotRestart) true.
type noRestartErr struct {
	err error
}

func (e *noRestartErr) Error() string {
	return e.err.Error()
}

func (e *noRestartErr) Unwrap() error {
	return e.err
}

func (e *noRestartErr) Is(target error) bool {
	return target == suture.ErrDoNotRestart
}
