// Package crypto derives log-safe fingerprints of client identifiers.
package crypto

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// fingerprintLen is the number of digest bytes kept (hex doubles it).
const fingerprintLen = 8

// Fingerprint returns a short stable BLAKE2b-256 digest of id so logs can
// correlate requests without carrying the raw identifier. Blank ids yield "".
func Fingerprint(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(id))
	return hex.EncodeToString(sum[:fingerprintLen])
}
