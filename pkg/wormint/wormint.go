// Package wormint provides WormholeForIntKey and WormholeForLongKey:
// thin adapters over the byte-key wormhole core using the big-endian,
// sign-flipped integer codecs from package codec, so that numeric
// ordering matches lexicographic ordering (spec.md §4.1, §6).
package wormint

import (
	"wormhole/pkg/codec"
	"wormhole/pkg/wormhole"
)

// WormholeForIntKey adapts the core to signed 32-bit integer keys.
type WormholeForIntKey[V any] struct {
	core  *wormhole.Wormhole[V]
	codec codec.Int32
}

// NewForIntKey constructs a WormholeForIntKey with the given options.
func NewForIntKey[V any](opts wormhole.Options) *WormholeForIntKey[V] {
	return &WormholeForIntKey[V]{core: wormhole.New[V](opts)}
}

// Get returns the value stored for key, if present.
func (w *WormholeForIntKey[V]) Get(key int32) (V, bool) {
	return w.core.Get(w.codec.Encode(key))
}

// Put inserts or overwrites key with value.
func (w *WormholeForIntKey[V]) Put(key int32, value V) {
	w.core.Put(w.codec.Encode(key), value)
}

// Delete removes key, reporting whether it was present.
func (w *WormholeForIntKey[V]) Delete(key int32) bool {
	return w.core.Delete(w.codec.Encode(key))
}

// Scan iterates entries in ascending key order over [start, end) or
// [start, end] depending on endExclusive. A nil start/end scans from
// the beginning / to the end respectively.
func (w *WormholeForIntKey[V]) Scan(start, end *int32, endExclusive bool, visit func(key int32, value V) bool) {
	var startKey, endKey []byte
	if start != nil {
		startKey = w.codec.Encode(*start)
	}
	if end != nil {
		endKey = w.codec.Encode(*end)
	}
	w.core.Scan(startKey, endKey, endExclusive, func(k []byte, v V) bool {
		return visit(decodeInt32(k), v)
	})
}

func decodeInt32(k []byte) int32 {
	var u uint32
	for _, b := range k {
		u = u<<8 | uint32(b)
	}
	return int32(u ^ 0x80000000)
}

// WormholeForLongKey adapts the core to signed 64-bit integer keys.
type WormholeForLongKey[V any] struct {
	core  *wormhole.Wormhole[V]
	codec codec.Int64
}

// NewForLongKey constructs a WormholeForLongKey with the given options.
func NewForLongKey[V any](opts wormhole.Options) *WormholeForLongKey[V] {
	return &WormholeForLongKey[V]{core: wormhole.New[V](opts)}
}

// Get returns the value stored for key, if present.
func (w *WormholeForLongKey[V]) Get(key int64) (V, bool) {
	return w.core.Get(w.codec.Encode(key))
}

// Put inserts or overwrites key with value.
func (w *WormholeForLongKey[V]) Put(key int64, value V) {
	w.core.Put(w.codec.Encode(key), value)
}

// Delete removes key, reporting whether it was present.
func (w *WormholeForLongKey[V]) Delete(key int64) bool {
	return w.core.Delete(w.codec.Encode(key))
}

// Scan iterates entries in ascending key order over [start, end) or
// [start, end] depending on endExclusive.
func (w *WormholeForLongKey[V]) Scan(start, end *int64, endExclusive bool, visit func(key int64, value V) bool) {
	var startKey, endKey []byte
	if start != nil {
		startKey = w.codec.Encode(*start)
	}
	if end != nil {
		endKey = w.codec.Encode(*end)
	}
	w.core.Scan(startKey, endKey, endExclusive, func(k []byte, v V) bool {
		return visit(decodeInt64(k), v)
	})
}

func decodeInt64(k []byte) int64 {
	var u uint64
	for _, b := range k {
		u = u<<8 | uint64(b)
	}
	return int64(u ^ 0x8000000000000000)
}
