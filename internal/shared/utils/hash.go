package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"strconv"

	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/types"
)

// HashAlgorithm represents the hashing algorithm to use
type HashAlgorithm string

const (
	SHA256 HashAlgorithm = "sha256"
)

// Hasher computes content digests
type Hasher struct {
	algorithm HashAlgorithm
}

// NewHasher creates a new hasher with the specified algorithm
func NewHasher(algorithm HashAlgorithm) *Hasher {
	return &Hasher{algorithm: algorithm}
}

// DefaultHasher returns a hasher with the default algorithm
func DefaultHasher() *Hasher {
	return NewHasher(SHA256)
}

func (h *Hasher) new() hash.Hash {
	switch h.algorithm {
	case SHA256:
		return sha256.New()
	default:
		return sha256.New()
	}
}

// Hash computes a hex digest of data
func (h *Hasher) Hash(data []byte) string {
	d := h.new()
	d.Write(data)
	return hex.EncodeToString(d.Sum(nil))
}

// HashString computes a hex digest of a string
func (h *Hasher) HashString(s string) string {
	return h.Hash([]byte(s))
}

// HashFiles digests a project snapshot. File order is part of the
// digest because entry fallback, style order and module collisions all
// depend on it. Every field is length-prefixed so no two snapshots
// share an encoding.
func (h *Hasher) HashFiles(title string, files []types.SourceFile) string {
	d := h.new()
	writeField(d, title)
	writeField(d, strconv.Itoa(len(files)))
	for _, f := range files {
		writeField(d, f.Path)
		writeField(d, string(f.Language))
		writeField(d, f.Content)
	}
	return hex.EncodeToString(d.Sum(nil))
}

// ShortHash returns the first n characters of a digest
func ShortHash(full string, n int) string {
	if len(full) < n {
		return full
	}
	return full[:n]
}

func writeField(w io.Writer, s string) {
	io.WriteString(w, strconv.Itoa(len(s)))
	io.WriteString(w, ":")
	io.WriteString(w, s)
}
