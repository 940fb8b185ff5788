// Package wormstr provides WormholeForStringKey: a thin adapter over
// the byte-key wormhole core for UTF-8 string keys (spec.md §4.1,
// §6).
package wormstr

import (
	"wormhole/pkg/codec"
	"wormhole/pkg/wormhole"
)

// WormholeForStringKey adapts the core to string keys.
type WormholeForStringKey[V any] struct {
	core  *wormhole.Wormhole[V]
	codec codec.String
}

// New constructs a WormholeForStringKey with the given options.
func New[V any](opts wormhole.Options) *WormholeForStringKey[V] {
	return &WormholeForStringKey[V]{core: wormhole.New[V](opts)}
}

// Get returns the value stored for key, if present.
func (w *WormholeForStringKey[V]) Get(key string) (V, bool) {
	return w.core.Get(w.codec.Encode(key))
}

// Put inserts or overwrites key with value.
func (w *WormholeForStringKey[V]) Put(key string, value V) {
	w.core.Put(w.codec.Encode(key), value)
}

// Delete removes key, reporting whether it was present.
func (w *WormholeForStringKey[V]) Delete(key string) bool {
	return w.core.Delete(w.codec.Encode(key))
}

// Scan iterates entries in ascending key order over [start, end) or
// [start, end] depending on endExclusive. An empty start scans from
// the beginning; a nil end scans to the end.
func (w *WormholeForStringKey[V]) Scan(start string, end *string, endExclusive bool, visit func(key string, value V) bool) {
	var startKey []byte
	if start != "" {
		startKey = w.codec.Encode(start)
	}
	var endKey []byte
	if end != nil {
		endKey = w.codec.Encode(*end)
	}
	w.core.Scan(startKey, endKey, endExclusive, func(k []byte, v V) bool {
		return visit(string(k), v)
	})
}

// ScanWithCount collects up to count entries starting at start in
// ascending key order.
func (w *WormholeForStringKey[V]) ScanWithCount(start string, count int) []struct {
	Key   string
	Value V
} {
	raw := w.core.ScanWithCount(w.codec.Encode(start), count)
	out := make([]struct {
		Key   string
		Value V
	}, len(raw))
	for i, e := range raw {
		out[i] = struct {
			Key   string
			Value V
		}{Key: string(e.Key), Value: e.Value}
	}
	return out
}
