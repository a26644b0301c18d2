package store

import "github.com/roach88/txrepl/internal/ir"

// Transaction status values as stored.
const (
	StatusCommitted  = "committed"
	StatusRolledBack = "rolled_back"
)

// SessionRecord describes a journaled session.
type SessionRecord struct {
	ID           string `json:"id"`
	CoreVersion  string `json:"core_version"`
	IRVersion    string `json:"ir_version"`
	Strict       bool   `json:"strict"`
	NativeString string `json:"native_string"`
}

// TxRecord is a journaled transaction. Seq equals the transaction id: both
// come from the session's logical clock.
type TxRecord struct {
	ID        ir.TxID          `json:"id"`
	SessionID string           `json:"session_id"`
	Seq       int64            `json:"seq"`
	Input     string           `json:"input"`
	Origin    string           `json:"origin"`
	Print     bool             `json:"print"`
	Artifacts []ArtifactRecord `json:"artifacts"`
	Status    string           `json:"status"`
}

// Live reports whether the transaction has not been rolled back.
func (r TxRecord) Live() bool {
	return r.Status == StatusCommitted
}

// ArtifactRecord names one linked artifact of a transaction. Code is not
// journaled; replay recompiles the input.
type ArtifactRecord struct {
	Symbol string `json:"symbol"`
	Type   string `json:"type"`
	Entry  bool   `json:"entry,omitempty"`
}

// LibraryRecord is a library load attempt.
type LibraryRecord struct {
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
	Seq       int64  `json:"seq"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// SnapshotRecord is a stored snapshot. A name saved twice has two records;
// the one with the higher seq is current.
type SnapshotRecord struct {
	SessionID string           `json:"session_id"`
	Name      string           `json:"name"`
	Seq       int64            `json:"seq"`
	Entries   []ir.SymbolEntry `json:"entries"`
}
