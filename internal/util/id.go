package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random identifier like "entry_3f2a…". The prefix makes IDs
// self-describing in logs and git history; 12 random bytes keep collisions
// out of reach for a single-author dataset.
func NewID(prefix string) string {
	bytes := make([]byte, 12)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
