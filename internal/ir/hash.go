package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainTrace    = "nbsim/trace/v1"
	DomainSnapshot = "nbsim/snapshot/v1"
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

// TraceHash computes a content hash over an ordered event trace.
// Two traces hash equal iff their canonical JSON forms are byte-identical.
func TraceHash(events []Event) (string, error) {
	list := make([]any, len(events))
	for i, e := range events {
		list[i] = e.CanonicalMap()
	}
	canonical, err := MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("TraceHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}

// SnapshotHash computes a content hash of a notebook snapshot.
func SnapshotHash(s Snapshot) (string, error) {
	canonical, err := MarshalCanonical(s.CanonicalMap())
	if err != nil {
		return "", fmt.Errorf("SnapshotHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// CanonicalMap converts the snapshot to the map form accepted by MarshalCanonical.
func (s Snapshot) CanonicalMap() map[string]any {
	cells := make([]any, len(s.Cells))
	for i, c := range s.Cells {
		m := map[string]any{
			"id":        string(c.ID),
			"kind":      string(c.Kind),
			"content":   c.Content,
			"executing": c.Executing,
		}
		if c.Output != nil {
			m["output"] = *c.Output
		}
		cells[i] = m
	}
	return map[string]any{
		"cells":     cells,
		"active_id": string(s.ActiveID),
		"status":    string(s.Status),
	}
}
