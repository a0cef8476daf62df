package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

const fingerprintLen = 12

// Fingerprint returns a short stable digest of a blob. Logs and conflict
// summaries carry fingerprints so ciphertext bodies never leak into output.
func Fingerprint(data []byte) string {
	if len(data) == 0 {
		return "empty"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}
