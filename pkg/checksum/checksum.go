// Package checksum provides SHA-256 helpers used to fingerprint geometry payloads,
// for example when building transform cache keys.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint hashes the given parts into one lowercase hex digest. Each part is
// length prefixed so that ("ab", "c") and ("a", "bc") hash differently.
func Fingerprint(parts ...[]byte) string {
	hasher := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(hasher, "%d:", len(p))
		hasher.Write(p)
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
