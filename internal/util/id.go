package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a URL-safe random hex identifier.
func NewID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
