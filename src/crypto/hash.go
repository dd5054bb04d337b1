package crypto

import (
	"crypto/sha256"
)

// SHA256 returns the SHA256 hash of the data. Content identifiers of quorum
// sets and transaction sets are computed with it.
func SHA256(data []byte) []byte {
	hasher := sha256.New()
	hasher.Write(data)
	return hasher.Sum(nil)
}
