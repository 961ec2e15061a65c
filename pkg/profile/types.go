// Package profile provides the persisted key-value profile shared by every
// cortex-watch invocation on a machine.
//
// Values are stored as JSON under string keys. Two keys have typed helpers:
//
//   - watcher_rpc_port: control port of the watcher manager
//   - watched: roots registered through a watch command and not yet unwatched
//
// The watched list is advisory. It is never consulted for lock state.
//
// Example usage:
//
//	p, err := profile.New(profile.Config{
//	    DBPath: "~/.config/cortex-watch/profile.db",
//	}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	if err := p.AddWatched("/work/app"); err != nil {
//	    log.Fatal(err)
//	}
package profile

import "time"

// Well-known profile keys.
const (
	KeyWatcherRPCPort = "watcher_rpc_port"
	KeyWatched        = "watched"
)

// Store provides access to the profile.
type Store interface {
	// Get decodes the value stored under key into out.
	//
	// Returns:
	//   - true if the key exists
	//   - Error for storage or decoding failures
	Get(key string, out interface{}) (bool, error)

	// Set stores value under key, replacing any previous value.
	Set(key string, value interface{}) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Port returns the stored watcher RPC port, or 0 if none is stored.
	Port() (int, error)

	// SetPort stores the watcher RPC port.
	SetPort(port int) error

	// Watched returns the persisted watched roots in insertion order.
	Watched() ([]string, error)

	// AddWatched appends roots that are not already present.
	AddWatched(roots ...string) error

	// RemoveWatched removes roots. Missing roots are ignored.
	RemoveWatched(roots ...string) error

	// Close releases resources.
	Close() error
}

// Config contains profile store configuration.
type Config struct {
	// DBPath is the BoltDB file path.
	DBPath string

	// Timeout is how long to wait for the database file lock (default: 1 second).
	// Several invocations may open the profile at once.
	Timeout time.Duration

	// Transient opens the database file for each operation instead of
	// holding it, so long-running processes do not lock other invocations
	// out.
	Transient bool
}
