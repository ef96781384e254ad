package services

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

var digestShape = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// IdentifierHasher turns user identifiers into the form sent to the platform
type IdentifierHasher interface {
	Hash(value string) string
	Prepare(value string, hashRequested bool) string
}

// SHA256IdentifierHasher hashes with SHA-256 and renders lowercase hex.
// Values already shaped like a digest are returned unchanged.
type SHA256IdentifierHasher struct{}

func NewIdentifierHasher() *SHA256IdentifierHasher {
	return &SHA256IdentifierHasher{}
}

func (h *SHA256IdentifierHasher) Hash(value string) string {
	if IsDigest(value) {
		return value
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// Prepare hashes value only when the producer asked for it; otherwise the
// platform hashes server-side.
func (h *SHA256IdentifierHasher) Prepare(value string, hashRequested bool) string {
	if !hashRequested {
		return value
	}
	return h.Hash(value)
}

// IsDigest reports whether value already has the shape of a hex SHA-256 digest
func IsDigest(value string) bool {
	return digestShape.MatchString(value)
}
