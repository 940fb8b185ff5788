// Package wormhole implements the orchestrator that binds a meta trie
// hash table to a chain of leaf nodes: Put, Get, Delete, and Scan, the
// split/merge policy that keeps leaves within their size bounds, and
// the routing logic that maps a key to its owning leaf (spec.md §4.4).
package wormhole

import (
	"errors"
	"fmt"

	"wormhole/internal/validate"
	"wormhole/pkg/leaf"
	"wormhole/pkg/meta"
	"wormhole/pkg/wkey"
)

// DefaultLeafSize is the default bound N on entries per leaf.
const DefaultLeafSize = 128

// ErrSplitImpossible is the panic value raised when find_split_point
// exhausts every candidate split position — pathological inputs where
// every key in a leaf shares a prefix too long to separate under
// invariant I4.
var ErrSplitImpossible = errors.New("wormhole: no valid split point found")

// ErrMissingSibling is wrapped by the panic value raised when an
// Internal's bitmap has no bit set near the byte being routed through.
// Indicates a broken Internal invariant (I6); the orchestrator should
// never observe this in practice.
var ErrMissingSibling = errors.New("wormhole: internal node has no live sibling bit")

// Options configures a Wormhole instance (spec.md §6).
type Options struct {
	// LeafSize bounds the number of entries per leaf (N). Defaults to
	// DefaultLeafSize when <= 0.
	LeafSize int
	// DebugMode, when true, runs the invariant validator after every
	// mutating operation (spec.md §7).
	DebugMode bool
}

// Wormhole is the single-threaded ordered key-value index core. It is
// not safe for concurrent use; see package safe for a lock-wrapped
// variant implementing the contract in spec.md §5.
type Wormhole[V any] struct {
	meta           *meta.Table[V]
	root           *leaf.Node[V]
	leafSize       int
	mergeThreshold int
	debugMode      bool
}

// New creates a Wormhole with a single root leaf spanning the entire
// key space, per spec.md §4.4 Initialization.
func New[V any](opts Options) *Wormhole[V] {
	leafSize := opts.LeafSize
	if leafSize <= 0 {
		leafSize = DefaultLeafSize
	}

	root := leaf.New[V](wkey.Key{wkey.SmallestToken}, leafSize, nil, nil)

	t := meta.NewTable[V]()
	t.Put(root.AnchorKey(), meta.NewLeafMeta(root.AnchorKey(), root))

	in := meta.NewInternalMeta(wkey.Key{}, &meta.Internal[V]{Leftmost: root, Rightmost: root})
	in.Bitmap[wkey.SmallestToken] = true
	t.Put(wkey.Key{}, in)

	wh := &Wormhole[V]{
		meta:           t,
		root:           root,
		leafSize:       leafSize,
		mergeThreshold: leafSize * 3 / 4,
		debugMode:      opts.DebugMode,
	}
	wh.validateIfDebug("New")
	return wh
}

func (wh *Wormhole[V]) validateIfDebug(op string) {
	if !wh.debugMode {
		return
	}
	if err := validate.Check(wh.meta, wh.root); err != nil {
		panic(fmt.Errorf("wormhole: invariant violation after %s: %w", op, err))
	}
}

// locateLeaf finds the leaf that owns key, per spec.md §4.4.
func (wh *Wormhole[V]) locateLeaf(key wkey.Key) *leaf.Node[V] {
	m := wh.meta.LongestPrefixMatch(key)

	switch node := m.(type) {
	case *meta.Leaf[V]:
		return node.Node

	case *meta.Internal[V]:
		p := node.AnchorPrefix()
		if len(p) == len(key) {
			lm := node.Leftmost
			if wkey.CompareAnchorKeys(key, lm.AnchorKey()) < 0 {
				return lm.Left
			}
			return lm
		}

		missing := key[len(p)]
		s, ok := meta.FindOneSibling(node.Bitmap, missing)
		if !ok {
			panic(fmt.Errorf("%w: prefix %q byte %d", ErrMissingSibling, p, missing))
		}

		childPrefix := append(append(wkey.Key{}, p...), s)
		child, ok := wh.meta.Get(childPrefix)
		if !ok {
			panic(fmt.Errorf("%w: prefix %q byte %d", ErrMissingSibling, p, s))
		}
		switch c := child.(type) {
		case *meta.Leaf[V]:
			if missing < s {
				return c.Node.Left
			}
			return c.Node
		case *meta.Internal[V]:
			if missing < s {
				return c.Leftmost.Left
			}
			return c.Rightmost
		}
	}
	panic("wormhole: unreachable node meta variant")
}

// Get returns the value stored for key, if present.
func (wh *Wormhole[V]) Get(key []byte) (V, bool) {
	lf := wh.locateLeaf(wkey.Key(key))
	e, ok := lf.PointSearch(wkey.Key(key))
	return e.Value, ok
}

// Put inserts key with value, or overwrites the value if key is
// already present, splitting the owning leaf on overflow.
func (wh *Wormhole[V]) Put(key []byte, value V) {
	k := wkey.Key(key)
	lf := wh.locateLeaf(k)

	if e, ok := lf.PointSearch(k); ok {
		_ = e
		wh.overwrite(lf, k, value)
		wh.validateIfDebug("Put")
		return
	}

	if !lf.Full() {
		lf.Add(k, value)
		wh.validateIfDebug("Put")
		return
	}

	newLeaf := wh.split(lf)
	if wkey.CompareAnchorKeys(k, newLeaf.AnchorKey()) < 0 {
		lf.Add(k, value)
	} else {
		newLeaf.Add(k, value)
	}
	wh.validateIfDebug("Put")
}

// overwrite replaces the value for an existing key without growing the
// leaf. LeafNode has no direct mutate-in-place op (spec.md §4.2 lists
// Add/Delete only), so overwrite deletes then re-adds, which holds the
// leaf at the same size (+0), matching scenario 6 in spec.md §8.
func (wh *Wormhole[V]) overwrite(lf *leaf.Node[V], key wkey.Key, value V) {
	lf.Delete(key)
	lf.Add(key, value)
}

// Delete removes key, merging the owning leaf with a sibling if the
// deletion drops it below the merge threshold.
func (wh *Wormhole[V]) Delete(key []byte) bool {
	k := wkey.Key(key)
	lf := wh.locateLeaf(k)
	if !lf.Delete(k) {
		return false
	}

	if lf.Left != nil && lf.Size()+lf.Left.Size() < wh.mergeThreshold {
		wh.merge(lf.Left, lf)
	} else if lf.Right != nil && lf.Size()+lf.Right.Size() < wh.mergeThreshold {
		wh.merge(lf, lf.Right)
	}
	wh.validateIfDebug("Delete")
	return true
}

// split splits lf, choosing a split point and collision-free anchor
// per find_split_point (spec.md §4.4), and reconciles the meta table.
func (wh *Wormhole[V]) split(lf *leaf.Node[V]) *leaf.Node[V] {
	lf.IncSort()

	i, newAnchor, err := wh.findSplitPoint(lf)
	if err != nil {
		panic(err)
	}

	newLeaf := lf.SplitToNewLeaf(newAnchor, i)
	wh.meta.HandleSplit(newAnchor, newLeaf)
	return newLeaf
}

// findSplitPoint implements spec.md §4.4's scan-forward anchor search:
// starting at the midpoint, find the first split index i whose
// candidate anchor (longest-common-prefix of the two straddling keys,
// plus the next differing byte) strictly exceeds the left key and does
// not collide with an existing Internal-only entry in a way invariant
// I4 cannot resolve via a trailing SmallestToken.
func (wh *Wormhole[V]) findSplitPoint(lf *leaf.Node[V]) (int, wkey.Key, error) {
	size := lf.Size()
	entries := wh.sortedEntries(lf)

	for i := size / 2; i < size; i++ {
		k1 := entries[i-1].Key
		k2 := entries[i].Key
		lcp := wkey.LongestCommonPrefix(k1, k2)
		newAnchor := append(append(wkey.Key{}, k1[:lcp]...), k2[lcp])

		if wkey.Compare(newAnchor, k1) <= 0 {
			continue
		}

		if existing, ok := wh.meta.Get(newAnchor); ok {
			if _, isLeaf := existing.(*meta.Leaf[V]); isLeaf {
				// A Leaf already anchors exactly here; a Leaf can
				// never coexist with another Leaf at the same
				// prefix (and this split would introduce a second
				// Leaf anchor), so this candidate cannot be used at
				// all — not even with SmallestToken, since that
				// collides with the *existing* leaf's own identity.
				continue
			}
			// existing is Internal: per spec.md §9 Open Question (a),
			// resolve the ambiguity by accepting newAnchor||SmallestToken,
			// which satisfies I4, unless that key is itself already
			// in the table, in which case the candidate is skipped.
			candidate := wkey.WithSmallestToken(newAnchor)
			if _, collides := wh.meta.Get(candidate); collides {
				continue
			}
			return i, candidate, nil
		}

		return i, newAnchor, nil
	}

	return 0, nil, ErrSplitImpossible
}

// sortedEntries returns lf's entries in key order by walking its
// already-sorted key refs (IncSort must have been called).
func (wh *Wormhole[V]) sortedEntries(lf *leaf.Node[V]) []leaf.Entry[V] {
	out := make([]leaf.Entry[V], 0, lf.Size())
	lf.Iterate(nil, nil, false, func(e leaf.Entry[V]) bool {
		out = append(out, e)
		return true
	})
	return out
}

// merge absorbs victim into left and reconciles the meta table.
func (wh *Wormhole[V]) merge(left, victim *leaf.Node[V]) {
	victimAnchor := victim.AnchorKey()
	left.Merge(victim)
	wh.meta.HandleMerge(victimAnchor, victim)
}

// Visitor is invoked once per entry during Scan; returning false stops
// the scan early.
type Visitor[V any] func(key []byte, value V) bool

// Scan iterates entries in ascending key order over [startKey, endKey)
// (endExclusive true) or [startKey, endKey] (endExclusive false). A nil
// startKey begins at the first entry; a nil endKey scans to the end.
func (wh *Wormhole[V]) Scan(startKey, endKey []byte, endExclusive bool, visit Visitor[V]) {
	var start *wkey.Key
	key := wkey.Key(nil)
	if startKey != nil {
		k := wkey.Key(startKey)
		start = &k
		key = k
	}
	var end *wkey.Key
	if endKey != nil {
		k := wkey.Key(endKey)
		end = &k
	}

	lf := wh.locateLeaf(key)
	cursor := start
	for lf != nil {
		lf.IncSort()
		cont := lf.Iterate(cursor, end, endExclusive, func(e leaf.Entry[V]) bool {
			return visit(e.Key, e.Value)
		})
		if !cont {
			return
		}
		lf = lf.Right
		cursor = nil
	}
}

// ScanEntry is a materialized (key, value) pair, used by ScanWithCount.
type ScanEntry[V any] struct {
	Key   []byte
	Value V
}

// ScanWithCount collects up to count entries starting at startKey in
// ascending key order.
func (wh *Wormhole[V]) ScanWithCount(startKey []byte, count int) []ScanEntry[V] {
	out := make([]ScanEntry[V], 0, count)
	n := 0
	wh.Scan(startKey, nil, false, func(key []byte, value V) bool {
		if n >= count {
			return false
		}
		out = append(out, ScanEntry[V]{Key: append([]byte(nil), key...), Value: value})
		n++
		return n < count
	})
	return out
}

// LocateLeaf exposes locateLeaf for package safe, whose Get needs the
// owning leaf to acquire its per-leaf mutex before searching it
// (spec.md §5). Not part of the single-threaded core's conceptual API.
func (wh *Wormhole[V]) LocateLeaf(key []byte) *leaf.Node[V] {
	return wh.locateLeaf(wkey.Key(key))
}

// Meta exposes the underlying meta table for structural inspection;
// not part of the public, stable surface.
func (wh *Wormhole[V]) Meta() *meta.Table[V] { return wh.meta }

// Root exposes the leftmost leaf for structural inspection.
func (wh *Wormhole[V]) Root() *leaf.Node[V] { return wh.root }

// LeafSize returns the configured per-leaf capacity N.
func (wh *Wormhole[V]) LeafSize() int { return wh.leafSize }
