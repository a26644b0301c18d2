package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/txrepl/internal/ir"
	"github.com/roach88/txrepl/internal/txlog"
)

// WriteSession inserts a session record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) WriteSession(ctx context.Context, rec SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, core_version, ir_version, strict, native_string)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, rec.ID, rec.CoreVersion, rec.IRVersion, boolToInt(rec.Strict), rec.NativeString)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// WriteTransaction records a committed transaction together with the entries
// it introduced and the entries it shadowed, atomically.
//
// Writing the same transaction twice is a no-op.
func (s *Store) WriteTransaction(ctx context.Context, sessionID string, tx *txlog.Transaction, introduced []ir.SymbolEntry) error {
	artifacts, err := marshalArtifacts(tx.Artifacts, tx.Entry)
	if err != nil {
		return fmt.Errorf("write transaction: %w", err)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write transaction: begin: %w", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO transactions (id, session_id, seq, input, origin, print, artifacts, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, id) DO NOTHING
	`,
		int64(tx.ID),
		sessionID,
		int64(tx.ID),
		tx.Input,
		tx.Origin,
		boolToInt(tx.Print),
		artifacts,
		StatusCommitted,
	)
	if err != nil {
		return fmt.Errorf("write transaction %d: %w", tx.ID, err)
	}

	for _, e := range introduced {
		if err := writeEntry(ctx, sqlTx, sessionID, e); err != nil {
			return err
		}
	}
	for _, id := range tx.Shadowed {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO shadows (session_id, tx_id, entry_id, seq)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(session_id, tx_id, entry_id) DO NOTHING
		`, sessionID, int64(tx.ID), string(id), int64(tx.ID))
		if err != nil {
			return fmt.Errorf("write shadow %s: %w", id.Short(), err)
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("write transaction: commit: %w", err)
	}
	return nil
}

func writeEntry(ctx context.Context, tx *sql.Tx, sessionID string, e ir.SymbolEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO entries (id, session_id, tx_id, seq, kind, scope, name, target, signature)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, id) DO NOTHING
	`,
		string(e.ID),
		sessionID,
		int64(e.Tx),
		e.Seq,
		string(e.Kind),
		e.Scope,
		e.Name,
		e.Target,
		e.Signature,
	)
	if err != nil {
		return fmt.Errorf("write entry %s: %w", e.ID.Short(), err)
	}
	return nil
}

// MarkRolledBack records that a transaction was rolled back. Its rows stay in
// the journal.
func (s *Store) MarkRolledBack(ctx context.Context, sessionID string, id ir.TxID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET status = ?
		WHERE session_id = ? AND id = ?
	`, StatusRolledBack, sessionID, int64(id))
	if err != nil {
		return fmt.Errorf("mark rolled back %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark rolled back %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("mark rolled back: transaction %d not journaled", id)
	}
	return nil
}

// WriteSnapshot records a stored snapshot. Saving a name again at a later
// seq adds a record; readers take the latest.
func (s *Store) WriteSnapshot(ctx context.Context, rec SnapshotRecord) error {
	entries, err := marshalEntries(rec.Entries)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (session_id, name, seq, entries)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, name, seq) DO UPDATE SET entries = excluded.entries
	`, rec.SessionID, rec.Name, rec.Seq, entries)
	if err != nil {
		return fmt.Errorf("write snapshot %q: %w", rec.Name, err)
	}
	return nil
}

// WriteLibrary records a library load attempt. A later attempt replaces a
// failed one; a loaded library is never overwritten.
func (s *Store) WriteLibrary(ctx context.Context, rec LibraryRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO libraries (session_id, path, seq, status, reason)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, path) DO UPDATE SET
			seq = excluded.seq, status = excluded.status, reason = excluded.reason
		WHERE libraries.status = 'failed'
	`, rec.SessionID, rec.Path, rec.Seq, rec.Status, rec.Reason)
	if err != nil {
		return fmt.Errorf("write library %s: %w", rec.Path, err)
	}
	return nil
}
