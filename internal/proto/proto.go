// Package proto is the wire codec. Every frame is
//
//	encode(header) || tag byte || encode(body)
//
// with little-endian fixed-width integers, fixed-width addresses and public
// keys, and one presence byte ahead of each optional field. Signatures,
// when present, cover exactly the encoded body.
package proto

import (
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/blake2b"

	"github.com/GildasT/MaidSafe-Routing/internal/routing"
)

type Tag uint8

const (
	TagConnect           Tag = 1
	TagConnectResponse   Tag = 2
	TagFindGroup         Tag = 3
	TagFindGroupResponse Tag = 4
	TagGetData           Tag = 5
	TagGetDataResponse   Tag = 6
	TagPutData           Tag = 7
	TagPutDataResponse   Tag = 8
	TagPost              Tag = 9
)

func (t Tag) Valid() bool { return t >= TagConnect && t <= TagPost }

// IsResponse reports whether frames with this tag complete pending tasks.
func (t Tag) IsResponse() bool {
	switch t {
	case TagConnectResponse, TagFindGroupResponse, TagGetDataResponse, TagPutDataResponse:
		return true
	}
	return false
}

func (t Tag) String() string {
	switch t {
	case TagConnect:
		return "connect"
	case TagConnectResponse:
		return "connect_response"
	case TagFindGroup:
		return "find_group"
	case TagFindGroupResponse:
		return "find_group_response"
	case TagGetData:
		return "get_data"
	case TagGetDataResponse:
		return "get_data_response"
	case TagPutData:
		return "put_data"
	case TagPutDataResponse:
		return "put_data_response"
	case TagPost:
		return "post"
	}
	return "unknown"
}

var (
	ErrShortBuffer   = errors.New("proto: short buffer")
	ErrTrailingBytes = errors.New("proto: trailing bytes")
	ErrBadTag        = errors.New("proto: unknown message tag")
)

const (
	SignatureBytes = 64
	PublicKeyBytes = 32
)

// Fingerprint identifies a message for per-hop deduplication. It is derived
// from the source address and message id, so every forwarded copy of one
// message collapses to the same value.
type Fingerprint [16]byte

func fingerprint(source routing.Address, messageID uint64) Fingerprint {
	var buf [routing.AddressBytes + 8]byte
	copy(buf[:], source[:])
	binary.LittleEndian.PutUint64(buf[routing.AddressBytes:], messageID)
	sum := blake2b.Sum256(buf[:])

	var fp Fingerprint
	copy(fp[:], sum[:])
	return fp
}
