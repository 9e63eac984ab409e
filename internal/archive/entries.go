package archive

import (
	"fmt"
	"iter"
	"maps"
	"slices"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"replicasync/internal/common"
)

// EntryState is what the archive needs from a per-replica state value:
// equality and a recognizable empty (absent) value.
type EntryState[E any] interface {
	Equal(other E) bool
	IsEmpty() bool
}

// Row holds one path's state in every replica, indexed like replica.Roots.
type Row[E EntryState[E]] []E

// AllEmpty reports whether the path is absent from every replica.
func (r Row[E]) AllEmpty() bool {
	return lo.EveryBy(r, func(e E) bool { return e.IsEmpty() })
}

// Entries stores all the archive rows of one directory (not recursive).
// It is not safe for concurrent use.
type Entries[E EntryState[E]] struct {
	entries map[HashedPath]Row[E]
	width   int
	dirty   bool
}

// NewEntries returns an empty, clean table for width replicas.
func NewEntries[E EntryState[E]](width int) *Entries[E] {
	return newEntriesFrom(width, make(map[HashedPath]Row[E]))
}

func newEntriesFrom[E EntryState[E]](width int, rows map[HashedPath]Row[E]) *Entries[E] {
	return &Entries[E]{entries: rows, width: width}
}

// Get looks up the row stored for path.
func (e *Entries[E]) Get(path string) (Row[E], bool) {
	row, ok := e.entries[Hash(path)]
	return row, ok
}

// Insert stores row under path, replacing any previous row, and marks the
// table dirty. The row must have one slot per replica.
func (e *Entries[E]) Insert(path string, row Row[E]) error {
	if len(row) != e.width {
		return fmt.Errorf("insert %q: %w: got %d, want %d", path, common.ErrRowWidth, len(row), e.width)
	}
	e.entries[Hash(path)] = slices.Clone(row)
	e.dirty = true
	return nil
}

// All iterates over the rows in no particular order.
func (e *Entries[E]) All() iter.Seq2[HashedPath, Row[E]] {
	return maps.All(e.entries)
}

// Len returns the number of rows, including all-empty ones not yet pruned.
func (e *Entries[E]) Len() int {
	return len(e.entries)
}

// Width returns the replica count every row is checked against.
func (e *Entries[E]) Width() int {
	return e.width
}

// PruneDeleted drops every row whose slots are all empty. Without it the
// archive grows with every file that is created, synced and then deleted.
func (e *Entries[E]) PruneDeleted() {
	for hashed, row := range e.entries {
		if row.AllEmpty() {
			log.Infof("Removing empty entry %d before writing", hashed)
			delete(e.entries, hashed)
		}
	}
}

// IsDirty reports whether Insert was called since the table was created.
func (e *Entries[E]) IsDirty() bool {
	return e.dirty
}
