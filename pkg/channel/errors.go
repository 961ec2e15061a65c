package channel

import (
	"errors"
	"fmt"
)

// Common errors returned by the channel package.
var (
	// ErrClosed is returned for requests on a closed connection.
	ErrClosed = errors.New("channel closed")

	// ErrRejected is returned when the manager answers a request with an
	// error.
	ErrRejected = errors.New("request rejected by manager")

	// ErrUnknownType is sent back for messages the manager does not handle.
	ErrUnknownType = errors.New("unknown message type")
)

// ChannelError reports a failed exchange with the manager: it could not be
// reached, the connection dropped, or it rejected the request.
type ChannelError struct {
	Op   string
	Addr string
	Err  error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}
