// Package leaf implements the bounded-capacity leaf node of a wormhole
// index: the entry vector, its hash-tag secondary index, its
// incrementally-sorted key-reference secondary index, and the
// doubly-linked sibling chain (spec.md §3, §4.2).
package leaf

import (
	"hash/fnv"
	"sort"
	"sync"

	"wormhole/pkg/wkey"
)

// hashMask keeps the tag a 15-bit projection, per spec.md §4.2/§9.
const hashMask = 0x7FFF

// Entry is a stored (key, value) pair.
type Entry[V any] struct {
	Key   wkey.Key
	Value V
}

// tag is a (hash16, entry index) pair, kept sorted by hash across the
// life of the leaf (invariant I2).
type tag struct {
	hash uint16
	idx  int
}

// Node is a bounded-capacity container holding up to MaxSize entries,
// with an immutable anchor key and non-owning sibling links. The meta
// table owns the Node; Left/Right are non-owning links (spec.md §9).
type Node[V any] struct {
	anchorKey wkey.Key
	maxSize   int

	entries []Entry[V]
	tags    []tag // sorted ascending by hash
	keyRefs []int // [0, sortedCount) sorted by key; [sortedCount, len) unsorted

	sortedCount int

	Left, Right *Node[V]

	// mu guards this leaf's entries/tags/keyRefs for the thread-safe
	// wrapper in package safe (spec.md §5: "each LeafNode is guarded
	// by its own mutex"). The single-threaded core never touches it.
	mu sync.Mutex
}

// Lock acquires the leaf's per-node mutex. Used only by the
// thread-safe wrapper in package safe; the unsynchronized core never
// calls it.
func (n *Node[V]) Lock() { n.mu.Lock() }

// Unlock releases the leaf's per-node mutex.
func (n *Node[V]) Unlock() { n.mu.Unlock() }

// New constructs a leaf with the given immutable anchor key and
// capacity. left/right may be nil.
func New[V any](anchorKey wkey.Key, maxSize int, left, right *Node[V]) *Node[V] {
	return &Node[V]{
		anchorKey: anchorKey.Clone(),
		maxSize:   maxSize,
		entries:   make([]Entry[V], 0, maxSize),
		tags:      make([]tag, 0, maxSize),
		keyRefs:   make([]int, 0, maxSize),
		Left:      left,
		Right:     right,
	}
}

// AnchorKey returns the leaf's immutable anchor key.
func (n *Node[V]) AnchorKey() wkey.Key { return n.anchorKey }

// MaxSize returns the leaf's configured capacity.
func (n *Node[V]) MaxSize() int { return n.maxSize }

// Size returns the current number of entries.
func (n *Node[V]) Size() int { return len(n.entries) }

// Full reports whether the leaf has reached capacity.
func (n *Node[V]) Full() bool { return len(n.entries) >= n.maxSize }

func hash16(key wkey.Key) uint16 {
	h := fnv.New32a()
	h.Write(key)
	return uint16(h.Sum32() & hashMask)
}

// PointSearch looks up key using the hash-tag index, seeding the scan
// with a linear estimator into the hash-sorted tag array and widening
// outward, then comparing full keys on hash collisions. It never
// mutates the leaf.
func (n *Node[V]) PointSearch(key wkey.Key) (Entry[V], bool) {
	size := len(n.tags)
	if size == 0 {
		var zero Entry[V]
		return zero, false
	}
	h := hash16(key)

	i := int(int(h) * size / 0x8000)
	if i >= size {
		i = size - 1
	}
	if i < 0 {
		i = 0
	}
	for i > 0 && n.tags[i-1].hash >= h {
		i--
	}
	for i < size && n.tags[i].hash < h {
		i++
	}
	for i < size && n.tags[i].hash == h {
		e := n.entries[n.tags[i].idx]
		if wkey.Equal(e.Key, key) {
			return e, true
		}
		i++
	}
	var zero Entry[V]
	return zero, false
}

// Add appends a new entry and indexes it. The caller must have already
// verified the leaf is not full and the key is absent (via
// PointSearch) — Add does not check either.
func (n *Node[V]) Add(key wkey.Key, value V) {
	idx := len(n.entries)
	n.entries = append(n.entries, Entry[V]{Key: key.Clone(), Value: value})

	h := hash16(key)
	pos := sort.Search(len(n.tags), func(i int) bool { return n.tags[i].hash >= h })
	n.tags = append(n.tags, tag{})
	copy(n.tags[pos+1:], n.tags[pos:])
	n.tags[pos] = tag{hash: h, idx: idx}

	// new ref joins the unsorted tail; sortedCount is unchanged.
	n.keyRefs = append(n.keyRefs, idx)
}

// IncSort sorts the unsorted tail of keyRefs by key, then merges it
// with the already-sorted prefix, restoring sortedCount == Size().
// Idempotent (invariant I3).
func (n *Node[V]) IncSort() {
	if n.sortedCount == len(n.keyRefs) {
		return
	}
	tail := n.keyRefs[n.sortedCount:]
	sort.Slice(tail, func(i, j int) bool {
		return wkey.Compare(n.entries[tail[i]].Key, n.entries[tail[j]].Key) < 0
	})

	merged := make([]int, 0, len(n.keyRefs))
	i, j := 0, 0
	head := n.keyRefs[:n.sortedCount]
	for i < len(head) && j < len(tail) {
		if wkey.Compare(n.entries[head[i]].Key, n.entries[tail[j]].Key) <= 0 {
			merged = append(merged, head[i])
			i++
		} else {
			merged = append(merged, tail[j])
			j++
		}
	}
	merged = append(merged, head[i:]...)
	merged = append(merged, tail[j:]...)

	n.keyRefs = merged
	n.sortedCount = len(n.keyRefs)
}

// keyRefSearch requires keyRefs to already be fully sorted (caller
// calls IncSort first). It returns the lower-bound index of key.
func (n *Node[V]) keyRefSearch(key wkey.Key) int {
	return sort.Search(len(n.keyRefs), func(i int) bool {
		return wkey.Compare(n.entries[n.keyRefs[i]].Key, key) >= 0
	})
}

// Delete removes key from the leaf, if present, from entries, tags,
// and keyRefs. O(N).
func (n *Node[V]) Delete(key wkey.Key) bool {
	n.IncSort()
	pos := n.keyRefSearch(key)
	if pos >= len(n.keyRefs) || !wkey.Equal(n.entries[n.keyRefs[pos]].Key, key) {
		return false
	}
	removedIdx := n.keyRefs[pos]

	// Remove from tags by tag value (hash+idx), not by position.
	h := hash16(key)
	tpos := sort.Search(len(n.tags), func(i int) bool { return n.tags[i].hash >= h })
	for tpos < len(n.tags) && n.tags[tpos].hash == h {
		if n.tags[tpos].idx == removedIdx {
			break
		}
		tpos++
	}
	n.tags = append(n.tags[:tpos], n.tags[tpos+1:]...)

	// Remove from keyRefs.
	n.keyRefs = append(n.keyRefs[:pos], n.keyRefs[pos+1:]...)
	n.sortedCount = len(n.keyRefs)

	// Remove from entries, shifting every ref greater than removedIdx
	// down by one to keep indices valid.
	n.entries = append(n.entries[:removedIdx], n.entries[removedIdx+1:]...)
	for i := range n.tags {
		if n.tags[i].idx > removedIdx {
			n.tags[i].idx--
		}
	}
	for i := range n.keyRefs {
		if n.keyRefs[i] > removedIdx {
			n.keyRefs[i]--
		}
	}
	return true
}

// SplitToNewLeaf moves key_refs[startRefIndex:] (and their backing
// entries) into a freshly created right sibling anchored at newAnchor,
// relinks the sibling chain, and returns the new leaf. Precondition:
// IncSort has already been called (sortedCount == Size()).
func (n *Node[V]) SplitToNewLeaf(newAnchor wkey.Key, startRefIndex int) *Node[V] {
	right := New[V](newAnchor, n.maxSize, n, n.Right)

	movedRefs := append([]int(nil), n.keyRefs[startRefIndex:]...)
	for _, oldIdx := range movedRefs {
		e := n.entries[oldIdx]
		right.entries = append(right.entries, e)
	}
	for i := range right.entries {
		h := hash16(right.entries[i].Key)
		right.tags = append(right.tags, tag{hash: h, idx: i})
	}
	sort.Slice(right.tags, func(i, j int) bool { return right.tags[i].hash < right.tags[j].hash })
	right.keyRefs = make([]int, len(right.entries))
	for i := range right.keyRefs {
		right.keyRefs[i] = i
	}
	right.sortedCount = len(right.keyRefs)

	// Remove the moved entries from self, keeping the remaining ones
	// contiguous and re-deriving tags/keyRefs (the moved set is
	// exactly the sorted suffix, so what remains is exactly the
	// sorted prefix [0, startRefIndex)).
	keepRefs := n.keyRefs[:startRefIndex]
	kept := make([]Entry[V], len(keepRefs))
	for i, oldIdx := range keepRefs {
		kept[i] = n.entries[oldIdx]
	}
	n.entries = kept
	n.tags = n.tags[:0]
	for i := range n.entries {
		h := hash16(n.entries[i].Key)
		n.tags = append(n.tags, tag{hash: h, idx: i})
	}
	sort.Slice(n.tags, func(i, j int) bool { return n.tags[i].hash < n.tags[j].hash })
	n.keyRefs = make([]int, len(n.entries))
	for i := range n.keyRefs {
		n.keyRefs[i] = i
	}
	n.sortedCount = len(n.keyRefs)

	// Relink the sibling chain: self.right.left = new; self.right = new.
	if n.Right != nil {
		n.Right.Left = right
	}
	n.Right = right
	return right
}

// Merge absorbs right's entries, tags, and key refs into self and
// relinks the sibling chain. The merged key_refs may require a
// subsequent IncSort before the next scan (the teacher's "sorted
// prefix ∪ sorted tail" shortcut from spec.md §4.2).
func (n *Node[V]) Merge(right *Node[V]) {
	base := len(n.entries)
	n.entries = append(n.entries, right.entries...)

	for _, t := range right.tags {
		n.tags = append(n.tags, tag{hash: t.hash, idx: t.idx + base})
	}
	sort.Slice(n.tags, func(i, j int) bool { return n.tags[i].hash < n.tags[j].hash })

	sortedHead := make([]int, n.sortedCount)
	copy(sortedHead, n.keyRefs[:n.sortedCount])
	unsortedMid := make([]int, len(n.keyRefs)-n.sortedCount)
	copy(unsortedMid, n.keyRefs[n.sortedCount:])

	rightRefs := make([]int, len(right.keyRefs))
	for i, r := range right.keyRefs {
		rightRefs[i] = r + base
	}

	n.keyRefs = append(append(append([]int(nil), sortedHead...), unsortedMid...), rightRefs...)
	// sortedCount still only covers the original sorted prefix; the
	// rest (unsorted tail + absorbed right side) awaits IncSort.

	n.Right = right.Right
	if n.Right != nil {
		n.Right.Left = n
	}
}

// Iterate walks entries in ascending key order starting at startKey
// (or the very first entry if nil), invoking f for each. It stops and
// returns false as soon as either: f returns false, or endKey is
// reached (> endKey, or >= endKey when endExclusive). Returning true
// means "continue into my right sibling". The caller must have called
// IncSort first.
func (n *Node[V]) Iterate(startKey, endKey *wkey.Key, endExclusive bool, f func(Entry[V]) bool) bool {
	start := 0
	if startKey != nil {
		start = n.keyRefSearch(*startKey)
	}
	for i := start; i < len(n.keyRefs); i++ {
		e := n.entries[n.keyRefs[i]]
		if endKey != nil {
			cmp := wkey.Compare(e.Key, *endKey)
			if endExclusive {
				if cmp >= 0 {
					return false
				}
			} else {
				if cmp > 0 {
					return false
				}
			}
		}
		if !f(e) {
			return false
		}
	}
	return true
}
