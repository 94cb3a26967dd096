// Package keyhash computes the deterministic, non-reversible fingerprint
// used as an API key's durable identifier everywhere except the single
// upstream call that needs the raw key (spec §3 "API key (ephemeral)").
package keyhash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash returns the hex-encoded SHA-256 digest of the raw key. It is a pure
// function: same key in, same hash out, across process restarts.
func Hash(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// ParseKeys splits a comma-separated header value into trimmed, non-empty
// raw keys (spec §6: "comma-separated. Whitespace trimmed; empty entries
// discarded").
func ParseKeys(header string) []string {
	var keys []string

	for _, part := range strings.Split(header, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}

	return keys
}
