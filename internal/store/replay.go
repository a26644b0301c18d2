package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/txrepl/internal/bridge"
	"github.com/roach88/txrepl/internal/ir"
	"github.com/roach88/txrepl/internal/session"
	"github.com/roach88/txrepl/internal/snapshot"
)

// ReplayFailure is a live transaction whose input no longer compiles or runs.
type ReplayFailure struct {
	Tx  ir.TxID
	Err error
}

// ReplayResult is the outcome of replaying a journaled session.
type ReplayResult struct {
	SessionID string

	// Replayed counts the live transactions whose inputs were re-run.
	Replayed int
	Failed   []ReplayFailure

	// Expected is the digest of the journaled visible directory; Actual is
	// the digest of the replayed session's directory.
	Expected string
	Actual   string

	// Session is the replayed session, with the journaled snapshots restored.
	Session *session.Session
}

// Match reports whether replay reproduced the journaled directory.
func (r ReplayResult) Match() bool {
	return len(r.Failed) == 0 && r.Expected == r.Actual
}

// Replay re-runs the live transactions of a journaled session in a fresh
// session and compares the resulting visible directory with the journaled
// one. Libraries that loaded in the original session are loaded first.
//
// opts are applied after the options derived from the session record, so a
// caller can supply a loader or include paths.
func (s *Store) Replay(ctx context.Context, sessionID string, opts ...session.Option) (ReplayResult, error) {
	result := ReplayResult{SessionID: sessionID}

	rec, err := s.ReadSession(ctx, sessionID)
	if err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}
	native, err := ir.ParseEncoding(rec.NativeString)
	if err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}

	base := []session.Option{
		session.WithIDGenerator(session.NewFixedGenerator(sessionID)),
		session.WithNativeString(native),
	}
	sess := session.New(append(base, opts...)...)
	result.Session = sess

	libs, err := s.ReadLibraries(ctx, sessionID)
	if err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}
	for _, lib := range libs {
		if lib.Status != string(bridge.Loaded) {
			continue
		}
		if _, _, err := sess.Libraries().Load(lib.Path); err != nil {
			slog.Warn("replay: library no longer loads", "path", lib.Path, "error", err)
		}
	}

	txs, err := s.ReadLiveTransactions(ctx, sessionID)
	if err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}
	for _, tx := range txs {
		out, err := sess.Replay(ctx, tx.Input, tx.Origin)
		if err != nil {
			return result, fmt.Errorf("replay transaction %d: %w", tx.ID, err)
		}
		result.Replayed++
		if out.Err != nil {
			result.Failed = append(result.Failed, ReplayFailure{Tx: tx.ID, Err: out.Err})
		}
	}

	snaps, err := s.ReadSnapshots(ctx, sessionID)
	if err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}
	if len(snaps) > 0 {
		journaled, err := s.ReadLiveEntries(ctx, sessionID)
		if err != nil {
			return result, fmt.Errorf("replay: %w", err)
		}
		ids := correspondence(journaled, liveEntries(sess))
		for _, snap := range snaps {
			entries := make([]ir.SymbolEntry, len(snap.Entries))
			for i, e := range snap.Entries {
				if r, ok := ids[e.ID]; ok {
					e = r
				}
				entries[i] = e
			}
			sess.Snapshots().Restore(snapshot.Snapshot{Name: snap.Name, Seq: snap.Seq, Entries: entries})
		}
	}

	visible, err := s.ReadVisible(ctx, sessionID)
	if err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}
	if result.Expected, err = ir.DirectoryDigest(visible); err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}
	if result.Actual, err = sess.Digest(); err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}

	slog.Debug("replay finished",
		"session", sessionID,
		"replayed", result.Replayed,
		"failed", len(result.Failed),
		"match", result.Match())
	return result, nil
}

// liveEntries lists every entry of the session's live transactions in
// introduction order.
func liveEntries(sess *session.Session) []ir.SymbolEntry {
	var out []ir.SymbolEntry
	for _, tx := range sess.Log().Live() {
		for _, id := range tx.Introduced {
			if e, ok := sess.Log().Entry(id); ok {
				out = append(out, e)
			}
		}
	}
	return out
}

// correspondence maps journaled entry ids to the replayed entries they
// became. Rolled-back transactions consume clock values, so replayed ids
// differ; entries correspond by shape and occurrence instead: the n-th
// journaled entry of a shape is the n-th replayed one.
func correspondence(journaled, replayed []ir.SymbolEntry) map[ir.EntryID]ir.SymbolEntry {
	type key struct {
		shape string
		n     int
	}
	seen := make(map[string]int)
	byKey := make(map[key]ir.SymbolEntry, len(replayed))
	for _, e := range replayed {
		k := key{e.Shape(), seen[e.Shape()]}
		seen[e.Shape()]++
		byKey[k] = e
	}

	clear(seen)
	out := make(map[ir.EntryID]ir.SymbolEntry, len(journaled))
	for _, e := range journaled {
		k := key{e.Shape(), seen[e.Shape()]}
		seen[e.Shape()]++
		if r, ok := byKey[k]; ok {
			out[e.ID] = r
		}
	}
	return out
}
