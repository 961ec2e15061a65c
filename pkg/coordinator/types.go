// Package coordinator drives the watch lifecycle of one process.
//
// Watch resolves the file set of each root and registers it with the watch
// manager; Unwatch does the reverse. Run consumes the manager's change
// events in arrival order and hands them to the rebuild trigger, and logs
// watch/unwatch advisories from other processes.
//
// Example usage:
//
//	c := coordinator.New(coordinator.Config{Concurrency: 4},
//	    client, watchset.New(watchset.Config{}, log), trigger, store, log)
//	defer c.Close()
//
//	for _, o := range c.Watch(ctx, []string{"/work/app"}) {
//	    fmt.Println(o.Root, o.Status, o.Files)
//	}
//
//	if err := c.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package coordinator

import (
	"context"

	"github.com/0xmhha/cortex-watch/pkg/channel"
)

// Channel is the coordinator's link to the watch manager.
// *channel.Client implements it.
type Channel interface {
	Watch(ctx context.Context, paths []string) error
	Unwatch(ctx context.Context, paths []string) error
	Changes() <-chan channel.Change
	Advisories() <-chan channel.Advisory
	Done() <-chan struct{}
	Close() error
}

// Status is the result of one root in a watch or unwatch call.
type Status string

// Outcome statuses.
const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// Outcome reports what happened to one root.
type Outcome struct {
	// Root is the normalized root path.
	Root string `json:"root"`

	// Status is ok, skipped or error.
	Status Status `json:"status"`

	// Files is the number of paths sent to the manager.
	Files int `json:"files"`

	// Err is set when Status is StatusError.
	Err error `json:"-"`
}

// Config contains coordinator configuration.
type Config struct {
	// Force watches roots that the profile lists as already watched.
	Force bool

	// Concurrency bounds how many roots are resolved at once. Default: 4.
	Concurrency int

	// Color enables ANSI status words in log messages.
	Color bool

	// PID identifies this process; advisories carrying it are not logged.
	// Default: os.Getpid().
	PID int

	// Reconnect replaces the channel after the manager connection ends.
	// When nil, Serve stops for good once the channel closes.
	Reconnect func(ctx context.Context) (Channel, error)
}
