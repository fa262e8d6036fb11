package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

const fingerprintBytes = 6

// Fingerprint returns a short, stable, non-reversible identifier for a
// token, suitable for logs and audit events where the token itself must not
// appear.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:fingerprintBytes])
}
