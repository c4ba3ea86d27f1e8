package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random hex identifier, namespaced when prefix is
// non-empty ("cmp_..." for compose session handles).
func NewID(prefix string) string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	if prefix == "" {
		return hex.EncodeToString(buf)
	}
	return prefix + "_" + hex.EncodeToString(buf)
}
