package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random hex identifier, namespaced with a prefix when one is
// given (e.g. "usr", "thr", "rpl").
func NewID(prefix string) string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	id := hex.EncodeToString(buf)
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
