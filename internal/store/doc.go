// Package store journals txrepl sessions to SQLite.
//
// The journal records every committed transaction with the symbol entries it
// introduced and shadowed, marks transactions rolled back when they are
// undone, and keeps stored snapshots and loaded libraries alongside. Rollback
// never deletes rows; a transaction's status says whether it is live.
//
// A journaled session can be replayed: its live inputs are compiled again in
// a fresh session and the resulting visible directory is compared with the
// journaled one by digest.
//
// All reads use deterministic ordering: ORDER BY seq ASC, id ASC COLLATE BINARY.
package store
