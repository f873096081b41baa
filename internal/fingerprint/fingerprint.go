// Package fingerprint computes the deterministic content hash used to key
// environments in the catalogue: a lowercase hex-encoded SHA-256 digest of a
// specification's raw metadata text.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Of returns the lowercase hex SHA-256 digest of rawText. Two specifications
// with byte-identical raw text always produce the same fingerprint; any
// byte difference in rawText, including whitespace or a TOML comment,
// produces a different one.
func Of(rawText string) string {
	sum := sha256.Sum256([]byte(rawText))
	return hex.EncodeToString(sum[:])
}
