// Package codec turns user-facing key types into the canonical
// wkey.Key byte sequence the core operates on (spec.md §4.1). Two
// variants suffice: byte/UTF-8 passthrough and fixed-width integers
// encoded big-endian, unsigned-biased so lexicographic order equals
// numeric order.
package codec

import (
	"encoding/binary"

	"wormhole/pkg/wkey"
)

// Codec encodes a user key type T into the canonical byte form the
// core compares and stores.
type Codec[T any] interface {
	Encode(key T) wkey.Key
}

// Bytes is a pass-through codec for raw byte-slice keys.
type Bytes struct{}

// Encode returns key unchanged (cloned, so the core never aliases
// caller-owned memory).
func (Bytes) Encode(key []byte) wkey.Key {
	return wkey.Key(key).Clone()
}

// String is a pass-through codec for string keys, encoded as their
// UTF-8 bytes.
type String struct{}

// Encode returns the UTF-8 bytes of key.
func (String) Encode(key string) wkey.Key {
	return wkey.Key(key)
}

// Int32 encodes a signed 32-bit integer big-endian with the sign bit
// flipped, so two's-complement ordering becomes lexicographic ordering.
type Int32 struct{}

// Encode returns the 4-byte sign-flipped big-endian encoding of key.
func (Int32) Encode(key int32) wkey.Key {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(key)^0x80000000)
	return buf
}

// Uint32 encodes an unsigned 32-bit integer big-endian.
type Uint32 struct{}

// Encode returns the 4-byte big-endian encoding of key.
func (Uint32) Encode(key uint32) wkey.Key {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, key)
	return buf
}

// Int64 encodes a signed 64-bit integer ("Long") big-endian with the
// sign bit flipped, so two's-complement ordering becomes lexicographic
// ordering.
type Int64 struct{}

// Encode returns the 8-byte sign-flipped big-endian encoding of key.
func (Int64) Encode(key int64) wkey.Key {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(key)^0x8000000000000000)
	return buf
}

// Uint64 encodes an unsigned 64-bit integer big-endian.
type Uint64 struct{}

// Encode returns the 8-byte big-endian encoding of key.
func (Uint64) Encode(key uint64) wkey.Key {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, key)
	return buf
}
