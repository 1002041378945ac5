package routing

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

const AddressBytes = 32

// Address is a fixed-width overlay identifier. A node's address is derived
// from its long-lived public key and never changes for the life of the
// process.
type Address [AddressBytes]byte

// AddressOf derives the overlay address for a public key.
func AddressOf(pub ed25519.PublicKey) Address {
	return Address(blake2b.Sum256(pub))
}

func ParseAddressHex(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, err
	}
	if len(b) != AddressBytes {
		return a, fmt.Errorf("address must be %d bytes, got %d", AddressBytes, len(b))
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) Hex() string { return hex.EncodeToString(a[:]) }

// Short returns the first 8 hex chars, for logs.
func (a Address) Short() string { return hex.EncodeToString(a[:4]) }

func (a Address) IsZero() bool { return a == Address{} }

// Distance is the XOR metric: d = a ^ b.
func Distance(a, b Address) (out Address) {
	for i := 0; i < AddressBytes; i++ {
		out[i] = a[i] ^ b[i]
	}
	return
}

// CloserTo reports whether a is strictly closer to target than b under
// unsigned lexicographic comparison of the XOR distances.
func CloserTo(a, b, target Address) bool {
	for i := 0; i < AddressBytes; i++ {
		da := a[i] ^ target[i]
		db := b[i] ^ target[i]
		if da != db {
			return da < db
		}
	}
	return false
}

// BucketIndex returns [0..255]: the position of the first bit (MSB-first)
// where self and other differ. Identical addresses return -1.
func BucketIndex(self, other Address) int {
	d := Distance(self, other)
	for byteIdx := 0; byteIdx < AddressBytes; byteIdx++ {
		x := d[byteIdx]
		if x == 0 {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			if x&(1<<(7-bit)) != 0 {
				return byteIdx*8 + bit
			}
		}
	}
	return -1
}

// less orders a before b by XOR distance to target, breaking exact-distance
// ties toward the lexicographically smaller address.
func less(a, b, target Address) bool {
	if CloserTo(a, b, target) {
		return true
	}
	if CloserTo(b, a, target) {
		return false
	}
	return bytes.Compare(a[:], b[:]) < 0
}
