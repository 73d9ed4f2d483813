// Package sha256 keys export rows for duplicate detection.
package sha256

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Hasher implements quotes.RowHasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// HashRow returns a hex digest identifying the exact field tuple. Each field
// is length-prefixed so ("a,b", "c") and ("a", "b,c") never collide.
func (h *Hasher) HashRow(fields []string) string {
	sum := sha256.New()
	var prefix [8]byte
	for _, f := range fields {
		binary.BigEndian.PutUint64(prefix[:], uint64(len(f)))
		sum.Write(prefix[:])
		sum.Write([]byte(f))
	}
	return hex.EncodeToString(sum.Sum(nil))
}
