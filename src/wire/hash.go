package wire

import (
	"bytes"

	"github.com/mosaicnetworks/overlay/src/common"
	"github.com/mosaicnetworks/overlay/src/crypto"
	"github.com/ugorji/go/codec"
)

// HashSize is the size of a content identifier.
const HashSize = 32

// Hash is the content identifier of a transaction set, quorum set or ledger.
type Hash [HashSize]byte

// HashFromBytes copies b into a Hash. Longer inputs are truncated.
func HashFromBytes(b []byte) Hash {
	var h Hash
	copy(h[:], b)
	return h
}

// IsZero reports whether h is the zero value, which stands for "no hash".
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Hex returns the full hexadecimal form of h.
func (h Hash) Hex() string {
	return common.EncodeToString(h[:])
}

// String returns an abbreviated form of h, for logs.
func (h Hash) String() string {
	return common.EncodeToString(h[:4])
}

// contentHash is the SHA256 of the canonical JSON encoding of v.
func contentHash(v interface{}) (Hash, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(v); err != nil {
		return Hash{}, err
	}

	return HashFromBytes(crypto.SHA256(b.Bytes())), nil
}
