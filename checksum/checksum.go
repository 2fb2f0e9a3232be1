// Package checksum computes and verifies content digests for chunk
// payloads. The digest is a hex-encoded SHA-256 of the exact chunk bytes.
package checksum

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}

// Verify reports whether digest matches the SHA-256 of data. The digest
// comparison is case-insensitive and constant-time.
func Verify(data []byte, digest string) bool {
	expected, err := hex.DecodeString(strings.ToLower(digest))
	if err != nil || len(expected) != sha256.Size {
		return false
	}
	actual := sha256.Sum256(data)
	return subtle.ConstantTimeCompare(actual[:], expected) == 1
}
