package object

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hash is a 64-character hex-encoded SHA-256 digest.
// The zero value means "no object" (e.g. the parent of the first commit).
type Hash string

// ZeroHash is the empty hash.
const ZeroHash Hash = ""

// IsZero reports whether h refers to no object.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// Short returns the first 12 characters, for logs and CLI output.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// String implements fmt.Stringer.
func (h Hash) String() string {
	return string(h)
}

// ParseHash validates a hex-encoded hash.
func ParseHash(s string) (Hash, error) {
	if len(s) != sha256.Size*2 {
		return ZeroHash, fmt.Errorf("parse hash %q: want %d hex characters, got %d", s, sha256.Size*2, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return ZeroHash, fmt.Errorf("parse hash %q: %w", s, err)
	}
	return Hash(s), nil
}

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainBlob   = "recordtree/blob/v1"
	DomainTree   = "recordtree/tree/v1"
	DomainCommit = "recordtree/commit/v1"
)

func domainFor(kind Kind) string {
	switch kind {
	case KindTree:
		return DomainTree
	case KindCommit:
		return DomainCommit
	default:
		return DomainBlob
	}
}

// HashOf computes the content address of an object.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity, and the
// per-kind domain keeps a blob from ever colliding with a tree of the same bytes.
func HashOf(kind Kind, data []byte) Hash {
	h := sha256.New()
	h.Write([]byte(domainFor(kind)))
	h.Write([]byte{0x00})
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}
