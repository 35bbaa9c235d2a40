// Package checksum computes the content fingerprints used for change
// detection. The fingerprint covers the document body only, so front-matter
// edits never count as a content change.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumString is Sum for string input, avoiding a copy at call sites that
// already hold the body as a string.
func SumString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
