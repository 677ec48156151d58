package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentHash returns the canonical hash of a chunk's text: sha256 over the
// trimmed content, hex-encoded. Dedup, cache keys, and cache validation all
// hash through here so the three never disagree.
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(h[:])
}
