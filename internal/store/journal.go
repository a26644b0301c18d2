package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/txrepl/internal/bridge"
	"github.com/roach88/txrepl/internal/ir"
	"github.com/roach88/txrepl/internal/snapshot"
	"github.com/roach88/txrepl/internal/txlog"
)

// Journal records one session into a Store. It observes the session's
// transaction log and is told about snapshots and library loads.
//
// The context given to BeginSession is used for every write: log observers
// are called without one.
type Journal struct {
	ctx       context.Context
	store     *Store
	sessionID string

	// seq is the highest logical time seen in a commit. Library loads are not
	// clocked by the session and are stamped with it.
	seq int64
}

// BeginSession records a new session and returns its journal.
func (s *Store) BeginSession(ctx context.Context, rec SessionRecord) (*Journal, error) {
	if rec.CoreVersion == "" {
		rec.CoreVersion = ir.CoreVersion
	}
	if rec.IRVersion == "" {
		rec.IRVersion = ir.IRVersion
	}
	if rec.NativeString == "" {
		rec.NativeString = ir.Narrow.String()
	}
	if err := s.WriteSession(ctx, rec); err != nil {
		return nil, err
	}
	slog.Debug("journal started", "session", rec.ID)
	return &Journal{ctx: ctx, store: s, sessionID: rec.ID}, nil
}

// SessionID returns the id of the journaled session.
func (j *Journal) SessionID() string {
	return j.sessionID
}

// OnCommit journals a committed transaction.
func (j *Journal) OnCommit(tx *txlog.Transaction, introduced []ir.SymbolEntry) error {
	j.seq = max(j.seq, int64(tx.ID))
	for _, e := range introduced {
		j.seq = max(j.seq, e.Seq)
	}
	return j.store.WriteTransaction(j.ctx, j.sessionID, tx, introduced)
}

// OnRollback marks a transaction rolled back.
func (j *Journal) OnRollback(tx *txlog.Transaction) error {
	return j.store.MarkRolledBack(j.ctx, j.sessionID, tx.ID)
}

// SaveSnapshot journals a stored snapshot.
func (j *Journal) SaveSnapshot(snap *snapshot.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("save snapshot: nil snapshot")
	}
	return j.store.WriteSnapshot(j.ctx, SnapshotRecord{
		SessionID: j.sessionID,
		Name:      snap.Name,
		Seq:       snap.Seq,
		Entries:   snap.Entries,
	})
}

// RecordLibrary journals a library load attempt.
func (j *Journal) RecordLibrary(lib bridge.Library) error {
	return j.store.WriteLibrary(j.ctx, LibraryRecord{
		SessionID: j.sessionID,
		Path:      lib.Path,
		Seq:       j.seq,
		Status:    string(lib.Status),
		Reason:    lib.Reason,
	})
}
