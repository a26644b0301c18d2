package txlog

import (
	"fmt"
	"log/slog"

	"github.com/roach88/txrepl/internal/diag"
	"github.com/roach88/txrepl/internal/ir"
)

// ErrNothingToUndo is returned by Undo on an empty log.
var ErrNothingToUndo = diag.NothingToUndo

// Status is the completion status of a transaction.
type Status int

const (
	Committed Status = iota
	RolledBack
)

func (s Status) String() string {
	if s == RolledBack {
		return "rolled_back"
	}
	return "committed"
}

// Transaction is the record of one accepted input fragment.
type Transaction struct {
	ID     ir.TxID
	Input  string
	Origin string // "prompt" or the locator of the file the input came from

	// Introduced lists the entries this transaction created, in order.
	Introduced []ir.EntryID

	// Shadowed lists the previously visible entries hidden by Introduced.
	Shadowed []ir.EntryID

	Artifacts []ir.Artifact
	Entry     *ir.Artifact
	Print     bool

	Status Status
}

// Observer is notified after every commit and rollback. Observer errors are
// logged and never undo the log operation.
type Observer interface {
	OnCommit(tx *Transaction, introduced []ir.SymbolEntry) error
	OnRollback(tx *Transaction) error
}

// Stats summarizes the log and directory.
type Stats struct {
	Live       int   `json:"live"`
	RolledBack int   `json:"rolled_back"`
	Entries    int   `json:"entries"`
	Visible    int   `json:"visible"`
	Seq        int64 `json:"seq"`
}

// Log is the transaction log.
//
// Transactions form a strict stack: only the most recent one can be rolled
// back. The log owns every symbol entry in an arena keyed by entry id; entries
// reference their transaction by id only. Rolling a transaction back removes
// its entries from the arena, so the arena always holds exactly the entries of
// live transactions.
type Log struct {
	clock     *Clock
	live      []*Transaction
	arena     map[ir.EntryID]*ir.SymbolEntry
	dir       *Directory
	observers []Observer

	rolledBack int
}

// New creates an empty log stamped by clock. A nil clock starts at 0.
func New(clock *Clock) *Log {
	if clock == nil {
		clock = NewClock()
	}
	arena := make(map[ir.EntryID]*ir.SymbolEntry)
	return &Log{
		clock: clock,
		arena: arena,
		dir:   newDirectory(arena),
	}
}

// Observe registers an observer.
func (l *Log) Observe(o Observer) {
	l.observers = append(l.observers, o)
}

// Directory returns the symbol directory view.
func (l *Log) Directory() *Directory {
	return l.dir
}

// Clock returns the log's logical clock.
func (l *Log) Clock() *Clock {
	return l.clock
}

// Commit pushes a transaction for a successfully compiled fragment.
//
// A using-alias identical to the alias already visible under the same name,
// and a namespace that is already visible, introduce nothing. Such
// transactions still occupy a log slot so that undo pops them one for one.
// Every other declaration creates an entry, shadowing whatever was visible
// under its qualified name.
func (l *Log) Commit(frag *ir.Fragment, input, origin string) (ir.TxID, error) {
	for _, d := range frag.Decls {
		if !ir.ValidEntryKinds[d.Kind] {
			return 0, fmt.Errorf("commit: invalid entry kind %q for %s", d.Kind, d.Qualified())
		}
		if d.Name == "" {
			return 0, fmt.Errorf("commit: %s declaration without a name", d.Kind)
		}
	}

	tx := &Transaction{
		ID:        ir.TxID(l.clock.Next()),
		Input:     input,
		Origin:    origin,
		Artifacts: frag.Artifacts,
		Entry:     frag.Entry,
		Print:     frag.Print,
		Status:    Committed,
	}

	introduced := make([]ir.SymbolEntry, 0, len(frag.Decls))
	for _, d := range frag.Decls {
		if l.redundant(d) {
			slog.Debug("redundant declaration", "decl", d.Qualified(), "kind", d.Kind, "tx", tx.ID)
			continue
		}

		seq := l.clock.Next()
		id, err := ir.NewEntryID(d, seq)
		if err != nil {
			// Only reachable with non-canonical input; leave no trace.
			l.unwind(tx)
			return 0, fmt.Errorf("commit: %w", err)
		}
		e := &ir.SymbolEntry{
			ID:        id,
			Kind:      d.Kind,
			Scope:     d.Scope,
			Name:      d.Name,
			Target:    d.Target,
			Signature: d.Signature,
			Tx:        tx.ID,
			Seq:       seq,
		}
		l.arena[id] = e
		if prev, ok := l.dir.push(d.Qualified(), id); ok {
			tx.Shadowed = append(tx.Shadowed, prev)
		}
		tx.Introduced = append(tx.Introduced, id)
		introduced = append(introduced, *e)
	}

	l.live = append(l.live, tx)
	slog.Debug("transaction committed",
		"tx", tx.ID,
		"origin", origin,
		"introduced", len(tx.Introduced),
		"shadowed", len(tx.Shadowed))

	for _, o := range l.observers {
		if err := o.OnCommit(tx, introduced); err != nil {
			slog.Warn("commit observer failed", "tx", tx.ID, "error", err)
		}
	}
	return tx.ID, nil
}

// redundant reports whether d would introduce nothing new: an identical
// using-alias or an already visible namespace.
func (l *Log) redundant(d ir.Decl) bool {
	top, ok := l.dir.Lookup(d.Qualified())
	if !ok || top.Kind != d.Kind {
		return false
	}
	switch d.Kind {
	case ir.KindUsing:
		return top.Target == d.Target
	case ir.KindNamespace:
		return true
	default:
		return false
	}
}

// Undo rolls back the most recent transaction.
func (l *Log) Undo() error {
	if len(l.live) == 0 {
		return ErrNothingToUndo
	}
	l.rollbackTop()
	return nil
}

// UndoN rolls back up to n transactions and returns how many were rolled
// back. It fails with ErrNothingToUndo only when the log is empty.
func (l *Log) UndoN(n int) (int, error) {
	if len(l.live) == 0 {
		return 0, ErrNothingToUndo
	}
	if n < 1 {
		n = 1
	}
	n = min(n, len(l.live))
	return l.RollbackTo(l.live[len(l.live)-n].ID)
}

// RollbackTo rolls back every transaction from the top of the stack down to
// and including id, and returns how many were rolled back.
func (l *Log) RollbackTo(id ir.TxID) (int, error) {
	idx := -1
	for i, tx := range l.live {
		if tx.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, fmt.Errorf("rollback: transaction %d is not live", id)
	}

	n := 0
	for len(l.live) > idx {
		l.rollbackTop()
		n++
	}
	return n, nil
}

func (l *Log) rollbackTop() {
	tx := l.live[len(l.live)-1]
	l.live = l.live[:len(l.live)-1]
	l.unwind(tx)
	tx.Status = RolledBack
	l.rolledBack++

	slog.Debug("transaction rolled back", "tx", tx.ID, "removed", len(tx.Introduced))

	for _, o := range l.observers {
		if err := o.OnRollback(tx); err != nil {
			slog.Warn("rollback observer failed", "tx", tx.ID, "error", err)
		}
	}
}

// unwind removes a transaction's entries from the directory and arena in
// reverse introduction order, which restores every shadowed entry.
func (l *Log) unwind(tx *Transaction) {
	for i := len(tx.Introduced) - 1; i >= 0; i-- {
		id := tx.Introduced[i]
		e, ok := l.arena[id]
		if !ok {
			continue
		}
		if !l.dir.pop(e.Qualified(), id) {
			// Strict stack discipline makes this unreachable.
			slog.Error("directory out of sync with log", "entry", id.Short(), "name", e.Qualified())
		}
		delete(l.arena, id)
	}
}

// Peek returns the id of the most recent live transaction.
func (l *Log) Peek() (ir.TxID, bool) {
	if len(l.live) == 0 {
		return 0, false
	}
	return l.live[len(l.live)-1].ID, true
}

// Get returns a live transaction by id.
func (l *Log) Get(id ir.TxID) (*Transaction, bool) {
	for _, tx := range l.live {
		if tx.ID == id {
			return tx, true
		}
	}
	return nil, false
}

// Live returns the live transactions, most recent first.
func (l *Log) Live() []*Transaction {
	out := make([]*Transaction, len(l.live))
	for i, tx := range l.live {
		out[len(l.live)-1-i] = tx
	}
	return out
}

// Len returns the number of live transactions.
func (l *Log) Len() int {
	return len(l.live)
}

// Entry returns a live entry by id.
func (l *Log) Entry(id ir.EntryID) (ir.SymbolEntry, bool) {
	e, ok := l.arena[id]
	if !ok {
		return ir.SymbolEntry{}, false
	}
	return *e, true
}

// Visible returns the visible entries ordered by introduction seq.
func (l *Log) Visible() []ir.SymbolEntry {
	return l.dir.Visible()
}

// Lookup returns the visible entry for a qualified name.
func (l *Log) Lookup(qualified string) (ir.SymbolEntry, bool) {
	return l.dir.Lookup(qualified)
}

// Stats returns counters for the log and directory.
func (l *Log) Stats() Stats {
	return Stats{
		Live:       len(l.live),
		RolledBack: l.rolledBack,
		Entries:    len(l.arena),
		Visible:    l.dir.Len(),
		Seq:        l.clock.Current(),
	}
}
