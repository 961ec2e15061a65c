// Package locktable tracks which roots have a rebuild in flight.
//
// A lock is a debounce flag, not a queue: while an id is locked, further
// change events for it are dropped by the caller. State is local to the
// process and safe for concurrent use.
//
// Ids are normalized absolute paths, so "/work/app/" and "/work/app/src/.."
// name the same entry.
package locktable

import (
	"path/filepath"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// Table maps ids to their locked state.
type Table struct {
	m *xsync.MapOf[string, bool]
}

// New returns an empty table.
func New() *Table {
	return &Table{m: xsync.NewMapOf[string, bool]()}
}

// ID normalizes a path into a table id.
func ID(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Lock marks ids as locked. Locking a locked id is a no-op.
func (t *Table) Lock(ids ...string) {
	for _, id := range ids {
		t.m.Store(ID(id), true)
	}
}

// Unlock clears ids. Unlocking an unlocked or unknown id is a no-op. The
// entry is kept with value false.
func (t *Table) Unlock(ids ...string) {
	for _, id := range ids {
		t.m.Store(ID(id), false)
	}
}

// IsLocked reports whether id is locked.
func (t *Table) IsLocked(id string) bool {
	locked, _ := t.m.Load(ID(id))
	return locked
}

// TryLock locks id and reports true if it was not already locked.
func (t *Table) TryLock(id string) bool {
	var acquired bool
	t.m.Compute(ID(id), func(locked bool, _ bool) (bool, bool) {
		acquired = !locked
		return true, false
	})
	return acquired
}

// Snapshot returns the locked ids, sorted.
func (t *Table) Snapshot() []string {
	var ids []string
	t.m.Range(func(id string, locked bool) bool {
		if locked {
			ids = append(ids, id)
		}
		return true
	})
	sort.Strings(ids)
	return ids
}

// Len returns the number of entries, locked or not.
func (t *Table) Len() int {
	return t.m.Size()
}
