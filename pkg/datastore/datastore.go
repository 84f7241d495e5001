// Package datastore implements the Datastore abstraction: the server-side
// mirror of the device's inspectable variables. Within this core, the
// Active SFD Handler is the sole writer; readers outside the core may
// observe concurrently, so access is guarded by a RWMutex even though
// every writer call happens from the single cooperative process() thread.
package datastore

import (
	"errors"
	"iter"
	"sync"
)

// EntryType classifies a DatastoreEntry. Var is the only kind this core
// ever creates; the type exists so the datastore's own indexing can
// distinguish variables from future entry kinds without a core-side
// redesign.
type EntryType int

const (
	// EntryTypeVar is a device-backed variable, the only kind the Active
	// SFD Handler adds.
	EntryTypeVar EntryType = iota
)

// ErrDuplicateEntry is returned by AddEntry when display_path already
// exists. The core treats this as a non-fatal warning and continues.
var ErrDuplicateEntry = errors.New("datastore: duplicate display path")

// ErrInvalidEntry is returned by AddEntry for a structurally invalid
// entry (empty display path).
var ErrInvalidEntry = errors.New("datastore: invalid entry")

// Entry is a single datastore record.
type Entry struct {
	EntryType   EntryType
	DisplayPath string
	VariableDef any
}

// Datastore is the live mirror of the connected device's variables.
type Datastore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates an empty Datastore.
func New() *Datastore {
	return &Datastore{entries: make(map[string]Entry)}
}

// Clear removes every entry.
func (d *Datastore) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = make(map[string]Entry)
}

// AddEntry inserts entry, keyed by its DisplayPath. It returns
// ErrInvalidEntry for an empty path and ErrDuplicateEntry if the path is
// already present; both are non-fatal to the caller.
func (d *Datastore) AddEntry(entry Entry) error {
	if entry.DisplayPath == "" {
		return ErrInvalidEntry
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.entries[entry.DisplayPath]; exists {
		return ErrDuplicateEntry
	}
	d.entries[entry.DisplayPath] = entry
	return nil
}

// Get looks up an entry by display path.
func (d *Datastore) Get(displayPath string) (Entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[displayPath]
	return e, ok
}

// Len reports the number of entries currently held.
func (d *Datastore) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Entries iterates every entry. The snapshot is taken under the read lock
// up front, so the iterator is safe even if the datastore is cleared
// concurrently mid-iteration.
func (d *Datastore) Entries() iter.Seq[Entry] {
	d.mu.RLock()
	snapshot := make([]Entry, 0, len(d.entries))
	for _, e := range d.entries {
		snapshot = append(snapshot, e)
	}
	d.mu.RUnlock()

	return func(yield func(Entry) bool) {
		for _, e := range snapshot {
			if !yield(e) {
				return
			}
		}
	}
}
