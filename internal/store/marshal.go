package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/txrepl/internal/ir"
)

// marshalArtifacts converts a transaction's artifacts to canonical JSON TEXT.
// The entry artifact, if any, is listed last with entry set.
func marshalArtifacts(arts []ir.Artifact, entry *ir.Artifact) (string, error) {
	list := make([]any, 0, len(arts)+1)
	for _, a := range arts {
		list = append(list, map[string]any{
			"symbol": a.Symbol,
			"type":   a.Type,
		})
	}
	if entry != nil {
		list = append(list, map[string]any{
			"symbol": entry.Symbol,
			"type":   entry.Type,
			"entry":  true,
		})
	}
	data, err := ir.MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("marshal artifacts: %w", err)
	}
	return string(data), nil
}

func unmarshalArtifacts(data string) ([]ArtifactRecord, error) {
	out := []ArtifactRecord{}
	if data == "" || data == "[]" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal artifacts: %w", err)
	}
	return out, nil
}

// marshalEntries converts snapshot entries to canonical JSON TEXT, so two
// snapshots of the same directory are byte-identical.
func marshalEntries(entries []ir.SymbolEntry) (string, error) {
	list := make([]any, len(entries))
	for i, e := range entries {
		list[i] = map[string]any{
			"id":        string(e.ID),
			"kind":      e.Kind,
			"scope":     e.Scope,
			"name":      e.Name,
			"target":    e.Target,
			"signature": e.Signature,
			"tx":        e.Tx,
			"seq":       e.Seq,
		}
	}
	data, err := ir.MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("marshal entries: %w", err)
	}
	return string(data), nil
}

func unmarshalEntries(data string) ([]ir.SymbolEntry, error) {
	out := []ir.SymbolEntry{}
	if data == "" || data == "[]" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal entries: %w", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
