package txlog

import (
	"cmp"
	"slices"

	"github.com/roach88/txrepl/internal/ir"
)

// Directory is the Symbol Directory: the derived view of every currently
// visible name in the session.
//
// For each qualified name it keeps a visibility stack of entry ids; the top
// of the stack is the visible entry and everything below it is shadowed. The
// entries themselves live in the transaction log's arena. Only Log mutates a
// Directory, through commit and rollback.
type Directory struct {
	arena  map[ir.EntryID]*ir.SymbolEntry
	stacks map[string][]ir.EntryID
}

func newDirectory(arena map[ir.EntryID]*ir.SymbolEntry) *Directory {
	return &Directory{
		arena:  arena,
		stacks: make(map[string][]ir.EntryID),
	}
}

// Lookup returns the visible entry for a qualified name.
func (d *Directory) Lookup(qualified string) (ir.SymbolEntry, bool) {
	stack := d.stacks[qualified]
	if len(stack) == 0 {
		return ir.SymbolEntry{}, false
	}
	e, ok := d.arena[stack[len(stack)-1]]
	if !ok {
		return ir.SymbolEntry{}, false
	}
	return *e, true
}

// Resolve looks up a qualified name and follows using-aliases to the entry
// they name. Alias chains are bounded by the number of visible names, so a
// malformed cycle terminates.
func (d *Directory) Resolve(qualified string) (ir.SymbolEntry, bool) {
	e, ok := d.Lookup(qualified)
	for hops := 0; ok && e.Kind == ir.KindUsing && hops <= len(d.stacks); hops++ {
		e, ok = d.Lookup(e.Target)
	}
	if ok && e.Kind == ir.KindUsing {
		return ir.SymbolEntry{}, false
	}
	return e, ok
}

// Depth returns how many entries are stacked under a qualified name,
// including the visible one.
func (d *Directory) Depth(qualified string) int {
	return len(d.stacks[qualified])
}

// Visible returns every visible entry ordered by introduction seq.
func (d *Directory) Visible() []ir.SymbolEntry {
	out := make([]ir.SymbolEntry, 0, len(d.stacks))
	for _, stack := range d.stacks {
		if e, ok := d.arena[stack[len(stack)-1]]; ok {
			out = append(out, *e)
		}
	}
	slices.SortFunc(out, func(a, b ir.SymbolEntry) int {
		if c := cmp.Compare(a.Seq, b.Seq); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Len returns the number of visible names.
func (d *Directory) Len() int {
	return len(d.stacks)
}

// push makes id the visible entry for its qualified name and returns the
// entry it shadows, if any.
func (d *Directory) push(qualified string, id ir.EntryID) (ir.EntryID, bool) {
	stack := d.stacks[qualified]
	var prev ir.EntryID
	shadowed := len(stack) > 0
	if shadowed {
		prev = stack[len(stack)-1]
	}
	d.stacks[qualified] = append(stack, id)
	return prev, shadowed
}

// pop removes id from the top of its qualified name's stack, restoring the
// entry it shadowed. It reports false if id is not on top.
func (d *Directory) pop(qualified string, id ir.EntryID) bool {
	stack := d.stacks[qualified]
	if len(stack) == 0 || stack[len(stack)-1] != id {
		return false
	}
	stack = stack[:len(stack)-1]
	if len(stack) == 0 {
		delete(d.stacks, qualified)
		return true
	}
	d.stacks[qualified] = stack
	return true
}
