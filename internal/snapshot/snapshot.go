// Package snapshot stores named captures of the symbol directory and diffs
// them against the current state.
package snapshot

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/txrepl/internal/ir"
)

// ErrUnknownSnapshot is returned when comparing against a name never stored.
var ErrUnknownSnapshot = errors.New("unknown snapshot")

// ChangeKind classifies one difference.
type ChangeKind string

const (
	Added   ChangeKind = "added"
	Removed ChangeKind = "removed"
)

// Change is one entry that differs between a snapshot and the current state.
type Change struct {
	Entry ir.SymbolEntry `json:"entry"`
	Kind  ChangeKind     `json:"kind"`
}

// String renders the change as "+ function A::foo" or "- using foo = A::foo".
func (c Change) String() string {
	sign := "+"
	if c.Kind == Removed {
		sign = "-"
	}
	return sign + " " + c.Entry.String()
}

// Snapshot is a named, immutable capture of the visible entries.
type Snapshot struct {
	Name    string           `json:"name"`
	Seq     int64            `json:"seq"`
	Entries []ir.SymbolEntry `json:"entries"`
}

// Store holds snapshots by name. A later Save under the same name replaces
// the earlier capture.
type Store struct {
	snaps map[string]*Snapshot
	order []string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{snaps: make(map[string]*Snapshot)}
}

// Save captures visible under name. The slice is copied; later changes to the
// directory never reach a stored snapshot.
func (s *Store) Save(name string, seq int64, visible []ir.SymbolEntry) *Snapshot {
	snap := &Snapshot{
		Name:    name,
		Seq:     seq,
		Entries: slices.Clone(visible),
	}
	if snap.Entries == nil {
		snap.Entries = []ir.SymbolEntry{}
	}
	if _, ok := s.snaps[name]; !ok {
		s.order = append(s.order, name)
	}
	s.snaps[name] = snap
	return snap
}

// Restore inserts a snapshot loaded from the journal.
func (s *Store) Restore(snap Snapshot) {
	s.Save(snap.Name, snap.Seq, snap.Entries)
}

// Get returns a stored snapshot.
func (s *Store) Get(name string) (*Snapshot, bool) {
	snap, ok := s.snaps[name]
	return snap, ok
}

// Names returns stored snapshot names in the order they were first saved.
func (s *Store) Names() []string {
	return slices.Clone(s.order)
}

// Compare diffs the current visible entries against a stored snapshot.
//
// Entries are matched by identity. Removals come first in snapshot order,
// then additions in current order. A session that ends exactly where it
// started relative to the snapshot yields an empty, non-nil list.
func (s *Store) Compare(name string, visible []ir.SymbolEntry) ([]Change, error) {
	snap, ok := s.snaps[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownSnapshot, name)
	}
	return Diff(snap.Entries, visible), nil
}

// Diff returns the changes that turn before into after.
func Diff(before, after []ir.SymbolEntry) []Change {
	inBefore := make(map[ir.EntryID]bool, len(before))
	for _, e := range before {
		inBefore[e.ID] = true
	}
	inAfter := make(map[ir.EntryID]bool, len(after))
	for _, e := range after {
		inAfter[e.ID] = true
	}

	changes := []Change{}
	for _, e := range before {
		if !inAfter[e.ID] {
			changes = append(changes, Change{Entry: e, Kind: Removed})
		}
	}
	for _, e := range after {
		if !inBefore[e.ID] {
			changes = append(changes, Change{Entry: e, Kind: Added})
		}
	}
	return changes
}

// Format renders a change list for the session, one change per line.
func Format(name string, changes []Change) string {
	if len(changes) == 0 {
		return fmt.Sprintf("no differences from %q\n", name)
	}
	var b strings.Builder
	for _, c := range changes {
		b.WriteString(c.String())
		b.WriteByte('\n')
	}
	return b.String()
}
