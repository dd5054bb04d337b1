package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"

	"github.com/mosaicnetworks/overlay/src/common"
)

// ToPublicKey parses the uncompressed form of a point on Curve().
func ToPublicKey(pub []byte) *ecdsa.PublicKey {
	if len(pub) == 0 {
		return nil
	}
	x, y := elliptic.Unmarshal(Curve(), pub)
	if x == nil {
		return nil
	}
	return &ecdsa.PublicKey{Curve: Curve(), X: x, Y: y}
}

// FromPublicKey outputs the uncompressed form of the public key.
func FromPublicKey(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return elliptic.Marshal(Curve(), pub.X, pub.Y)
}

// PublicKeyHex returns the hexadecimal representation of the uncompressed form
// of the public key.
func PublicKeyHex(pub *ecdsa.PublicKey) string {
	return common.EncodeToString(FromPublicKey(pub))
}

// NodeID is the identity a node announces in its Hello message.
func NodeID(key *ecdsa.PrivateKey) string {
	if key == nil {
		return ""
	}
	return PublicKeyHex(&key.PublicKey)
}

// ValidNodeID reports whether id is the hex form of a point on Curve().
func ValidNodeID(id string) bool {
	b, err := common.DecodeFromString(id)
	if err != nil {
		return false
	}
	return ToPublicKey(b) != nil
}
