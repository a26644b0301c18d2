package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
)

// EntryID is the content-addressed identity of a symbol entry.
type EntryID string

// Short returns the first 12 hex digits of the id for display.
func (id EntryID) Short() string {
	if len(id) <= 12 {
		return string(id)
	}
	return string(id[:12])
}

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainEntry     = "txrepl/entry/v1"
	DomainDirectory = "txrepl/directory/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// NewEntryID computes the identity of an entry introduced at seq.
//
// The introducing seq is part of the identity: declaring the same name twice
// yields two distinct entries, the later one shadowing the earlier.
func NewEntryID(d Decl, seq int64) (EntryID, error) {
	obj := map[string]any{
		"kind":      string(d.Kind),
		"scope":     d.Scope,
		"name":      d.Name,
		"target":    d.Target,
		"signature": d.Signature,
		"seq":       seq,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("NewEntryID: failed to marshal: %w", err)
	}
	return EntryID(hashWithDomain(DomainEntry, canonical)), nil
}

// MustEntryID is like NewEntryID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEntryID(d Decl, seq int64) EntryID {
	id, err := NewEntryID(d, seq)
	if err != nil {
		panic(err)
	}
	return id
}

// DirectoryDigest hashes the shapes of a set of visible entries. The digest is
// order-insensitive and independent of entry ids, so two sessions that end in
// the same visible state have equal digests.
func DirectoryDigest(entries []SymbolEntry) (string, error) {
	shapes := make([]string, len(entries))
	for i, e := range entries {
		shapes[i] = e.Shape()
	}
	slices.Sort(shapes)

	canonical, err := MarshalCanonical(shapes)
	if err != nil {
		return "", fmt.Errorf("DirectoryDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDirectory, canonical), nil
}
