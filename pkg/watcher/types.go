// Package watcher provides the filesystem event primitive of the watch
// manager.
//
// Individual files are registered with Add and unregistered with Remove.
// The backend watches their parent directories and the watcher reports
// changes of registered files only. Registering a directory reports changes
// of its direct entries. Rapid changes of one file are debounced.
//
// Two backends are available: "fsnotify" (default) and "notify"
// (github.com/rjeczalik/notify).
//
// Example usage:
//
//	w, err := watcher.New(watcher.Config{
//	    DebounceInterval: 100 * time.Millisecond,
//	}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	if err := w.Add("/work/app/src/index.js"); err != nil {
//	    log.Fatal(err)
//	}
//
//	for event := range w.Events() {
//	    fmt.Printf("File %s: %s\n", event.Path, event.Kind())
//	}
package watcher

import (
	"context"
	"time"
)

// Backend names.
const (
	BackendFSNotify = "fsnotify"
	BackendNotify   = "notify"
)

// Op describes a file operation type.
type Op uint32

// File operation types.
const (
	OpCreate Op = 1 << iota // File created
	OpWrite                 // File modified
	OpRemove                // File deleted
	OpRename                // File renamed/moved
	OpChmod                 // File permissions changed
)

// String returns a human-readable operation name.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	case OpChmod:
		return "CHMOD"
	default:
		return "UNKNOWN"
	}
}

// Event kinds reported to watch clients.
const (
	KindAdd    = "add"
	KindChange = "change"
	KindUnlink = "unlink"
)

// Event represents a file system event.
type Event struct {
	// Path is the absolute path to the file that triggered the event.
	Path string

	// Op is the operation that triggered the event.
	Op Op

	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Kind returns the client-facing event kind: add, change or unlink.
func (e Event) Kind() string {
	switch e.Op {
	case OpCreate:
		return KindAdd
	case OpRemove, OpRename:
		return KindUnlink
	default:
		return KindChange
	}
}

// Watcher provides file system monitoring.
type Watcher interface {
	// Start begins event processing.
	//
	// Returns ErrAlreadyStarted if called twice and ErrWatcherClosed after
	// Close. Processing stops when ctx is cancelled.
	Start(ctx context.Context) error

	// Add registers paths. Paths that are already registered are skipped;
	// paths that do not exist are skipped with a warning.
	//
	// Returns error if a parent directory cannot be watched.
	Add(paths ...string) error

	// Remove unregisters paths. Unknown paths are ignored.
	Remove(paths ...string) error

	// Registered returns the registered paths, sorted.
	Registered() []string

	// Events returns the channel for receiving file system events.
	//
	// Events are debounced based on the configured interval.
	// The channel is closed when the watcher closes.
	Events() <-chan Event

	// Errors returns the channel for receiving watcher errors.
	//
	// Non-fatal errors are sent to this channel.
	// The channel is closed when the watcher closes.
	Errors() <-chan error

	// Close closes the watcher and releases resources.
	Close() error
}

// Config contains watcher configuration.
type Config struct {
	// Backend selects the event source: "fsnotify" or "notify".
	// Default: "fsnotify".
	Backend string

	// DebounceInterval is the time to wait before emitting an event.
	// Multiple events for the same file within this interval are coalesced.
	// Default: 100ms.
	DebounceInterval time.Duration

	// CircuitBreakerThreshold is the number of consecutive backend errors
	// after which ErrCircuitBreakerOpen is reported.
	// Default: 5.
	CircuitBreakerThreshold int
}
