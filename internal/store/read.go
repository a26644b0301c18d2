package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/txrepl/internal/ir"
)

// ErrSessionNotFound is returned when a session id is not journaled.
var ErrSessionNotFound = errors.New("session not found")

// ReadSessions returns every journaled session. UUIDv7 ids sort in creation
// order, so ordering by id lists oldest first.
func (s *Store) ReadSessions(ctx context.Context) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, core_version, ir_version, strict, native_string
		FROM sessions
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionRecord{}
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadSession returns one session, or ErrSessionNotFound.
func (s *Store) ReadSession(ctx context.Context, id string) (SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, core_version, ir_version, strict, native_string
		FROM sessions
		WHERE id = ?
	`, id)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return rec, err
}

// LatestSession returns the most recently created session.
func (s *Store) LatestSession(ctx context.Context) (SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, core_version, ir_version, strict, native_string
		FROM sessions
		ORDER BY id COLLATE BINARY DESC
		LIMIT 1
	`)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, fmt.Errorf("%w: journal is empty", ErrSessionNotFound)
	}
	return rec, err
}

// ReadTransactions returns every transaction of a session, live or rolled
// back, ordered by seq.
func (s *Store) ReadTransactions(ctx context.Context, sessionID string) ([]TxRecord, error) {
	return s.readTransactions(ctx, sessionID, false)
}

// ReadLiveTransactions returns the transactions of a session that were never
// rolled back, ordered by seq.
func (s *Store) ReadLiveTransactions(ctx context.Context, sessionID string) ([]TxRecord, error) {
	return s.readTransactions(ctx, sessionID, true)
}

func (s *Store) readTransactions(ctx context.Context, sessionID string, liveOnly bool) ([]TxRecord, error) {
	query := `
		SELECT id, session_id, seq, input, origin, print, artifacts, status
		FROM transactions
		WHERE session_id = ?`
	args := []any{sessionID}
	if liveOnly {
		query += ` AND status = ?`
		args = append(args, StatusCommitted)
	}
	query += `
		ORDER BY seq ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txs := []TxRecord{}
	for rows.Next() {
		var (
			rec       TxRecord
			id        int64
			printed   int
			artifacts string
		)
		if err := rows.Scan(&id, &rec.SessionID, &rec.Seq, &rec.Input, &rec.Origin, &printed, &artifacts, &rec.Status); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		rec.ID = ir.TxID(id)
		rec.Print = printed != 0
		if rec.Artifacts, err = unmarshalArtifacts(artifacts); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", id, err)
		}
		txs = append(txs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

// ReadVisible reconstructs the visible directory of a session: entries of
// live transactions that no live transaction shadows.
func (s *Store) ReadVisible(ctx context.Context, sessionID string) ([]ir.SymbolEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.kind, e.scope, e.name, e.target, e.signature, e.tx_id, e.seq
		FROM entries e
		JOIN transactions t ON t.session_id = e.session_id AND t.id = e.tx_id
		WHERE e.session_id = ?
		  AND t.status = ?
		  AND NOT EXISTS (
			SELECT 1 FROM shadows sh
			JOIN transactions st ON st.session_id = sh.session_id AND st.id = sh.tx_id
			WHERE sh.session_id = e.session_id
			  AND sh.entry_id = e.id
			  AND st.status = ?
		  )
		ORDER BY e.seq ASC, e.id COLLATE BINARY ASC
	`, sessionID, StatusCommitted, StatusCommitted)
	if err != nil {
		return nil, fmt.Errorf("query visible entries: %w", err)
	}
	return scanEntries(rows)
}

// scanEntries reads entry rows and closes them.
func scanEntries(rows *sql.Rows) ([]ir.SymbolEntry, error) {
	defer rows.Close()

	entries := []ir.SymbolEntry{}
	for rows.Next() {
		var (
			e    ir.SymbolEntry
			id   string
			kind string
			tx   int64
		)
		if err := rows.Scan(&id, &kind, &e.Scope, &e.Name, &e.Target, &e.Signature, &tx, &e.Seq); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.ID = ir.EntryID(id)
		e.Kind = ir.EntryKind(kind)
		e.Tx = ir.TxID(tx)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// ReadLiveEntries returns every entry introduced by a live transaction of a
// session, shadowed or not, ordered by seq.
func (s *Store) ReadLiveEntries(ctx context.Context, sessionID string) ([]ir.SymbolEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.kind, e.scope, e.name, e.target, e.signature, e.tx_id, e.seq
		FROM entries e
		JOIN transactions t ON t.session_id = e.session_id AND t.id = e.tx_id
		WHERE e.session_id = ? AND t.status = ?
		ORDER BY e.seq ASC, e.id COLLATE BINARY ASC
	`, sessionID, StatusCommitted)
	if err != nil {
		return nil, fmt.Errorf("query live entries: %w", err)
	}
	return scanEntries(rows)
}

// ReadSnapshots returns the current snapshot for every name stored in a
// session, ordered by seq.
func (s *Store) ReadSnapshots(ctx context.Context, sessionID string) ([]SnapshotRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sn.name, sn.seq, sn.entries
		FROM snapshots sn
		WHERE sn.session_id = ?
		  AND sn.seq = (
			SELECT MAX(seq) FROM snapshots
			WHERE session_id = sn.session_id AND name = sn.name
		  )
		ORDER BY sn.seq ASC, sn.name COLLATE BINARY ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []SnapshotRecord{}
	for rows.Next() {
		rec := SnapshotRecord{SessionID: sessionID}
		var entries string
		if err := rows.Scan(&rec.Name, &rec.Seq, &entries); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if rec.Entries, err = unmarshalEntries(entries); err != nil {
			return nil, fmt.Errorf("snapshot %q: %w", rec.Name, err)
		}
		snaps = append(snaps, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

// ReadLibraries returns the library load attempts of a session.
func (s *Store) ReadLibraries(ctx context.Context, sessionID string) ([]LibraryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, seq, status, reason
		FROM libraries
		WHERE session_id = ?
		ORDER BY seq ASC, path COLLATE BINARY ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query libraries: %w", err)
	}
	defer rows.Close()

	libs := []LibraryRecord{}
	for rows.Next() {
		rec := LibraryRecord{SessionID: sessionID}
		if err := rows.Scan(&rec.Path, &rec.Seq, &rec.Status, &rec.Reason); err != nil {
			return nil, fmt.Errorf("scan library: %w", err)
		}
		libs = append(libs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate libraries: %w", err)
	}
	return libs, nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (SessionRecord, error) {
	var (
		rec    SessionRecord
		strict int
	)
	if err := row.Scan(&rec.ID, &rec.CoreVersion, &rec.IRVersion, &strict, &rec.NativeString); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan session: %w", err)
	}
	rec.Strict = strict != 0
	return rec, nil
}
