// Package meta implements the flat hash map from anchor prefix to node
// metadata described in spec.md §3/§4.3: a longest-prefix-match index
// over either Leaf descriptors or Internal descriptors carrying a
// live-child bitmap and cached left/right-most leaf descendants.
package meta

import (
	"fmt"

	"wormhole/pkg/leaf"
	"wormhole/pkg/wkey"
)

// NodeMeta is the tagged variant stored in the hash table, keyed by
// its AnchorPrefix. It is either a Leaf or an Internal descriptor.
type NodeMeta[V any] interface {
	AnchorPrefix() wkey.Key
	isNodeMeta()
}

// Leaf names the leaf node living at a complete anchor key.
type Leaf[V any] struct {
	anchorPrefix wkey.Key
	Node         *leaf.Node[V]
}

// AnchorPrefix returns the prefix this descriptor is keyed under.
func (l *Leaf[V]) AnchorPrefix() wkey.Key { return l.anchorPrefix }
func (l *Leaf[V]) isNodeMeta()            {}

// Internal names a trie branch point: a bitmap of live child
// head-bytes plus the cached leftmost/rightmost leaf descendants
// (invariant I6).
type Internal[V any] struct {
	anchorPrefix wkey.Key
	Bitmap       [256]bool
	Leftmost     *leaf.Node[V]
	Rightmost    *leaf.Node[V]
}

// AnchorPrefix returns the prefix this descriptor is keyed under.
func (i *Internal[V]) AnchorPrefix() wkey.Key { return i.anchorPrefix }
func (i *Internal[V]) isNodeMeta()            {}

// Violation reports a broken structural invariant (I4, I6) detected
// inside Table's mutating operations. These are programmer errors:
// the orchestrator is expected to have chosen a collision-free anchor
// before calling into Table, so Violation is carried via panic, not a
// returned error (spec.md §7).
type Violation struct {
	Op      string
	Prefix  wkey.Key
	Message string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("meta: invariant violation in %s at prefix %q: %s", v.Op, v.Prefix, v.Message)
}

// Table is the flat anchor-prefix -> NodeMeta hash map.
type Table[V any] struct {
	entries      map[string]NodeMeta[V]
	maxPrefixLen int
}

// NewLeafMeta constructs a Leaf descriptor anchored at prefix.
func NewLeafMeta[V any](prefix wkey.Key, node *leaf.Node[V]) *Leaf[V] {
	return &Leaf[V]{anchorPrefix: prefix.Clone(), Node: node}
}

// NewInternalMeta anchors the Internal descriptor in at prefix and
// returns in itself; its bitmap and cached leftmost/rightmost leaves
// are kept as they are, not copied.
func NewInternalMeta[V any](prefix wkey.Key, in *Internal[V]) *Internal[V] {
	in.anchorPrefix = prefix.Clone()
	return in
}

// NewTable constructs an empty table.
func NewTable[V any]() *Table[V] {
	return &Table[V]{entries: make(map[string]NodeMeta[V])}
}

// Get returns the descriptor stored at prefix, if any.
func (t *Table[V]) Get(prefix wkey.Key) (NodeMeta[V], bool) {
	m, ok := t.entries[string(prefix)]
	return m, ok
}

// Range calls f once per (prefix, NodeMeta) entry currently stored in
// the table, stopping early if f returns false. Exposed for package
// validate's structural walk (P7/P8); not used on any hot path.
func (t *Table[V]) Range(f func(prefix wkey.Key, m NodeMeta[V]) bool) {
	for k, v := range t.entries {
		if !f(wkey.Key(k), v) {
			return
		}
	}
}

// Put stores nodeMeta under prefix. nodeMeta.AnchorPrefix() must equal
// prefix (invariant I4); mismatches are a programmer error.
func (t *Table[V]) Put(prefix wkey.Key, nodeMeta NodeMeta[V]) {
	if !wkey.Equal(nodeMeta.AnchorPrefix(), prefix) {
		panic(&Violation{Op: "Put", Prefix: prefix, Message: "anchor_prefix does not match table key"})
	}
	t.entries[string(prefix)] = nodeMeta
	if len(prefix) > t.maxPrefixLen {
		t.maxPrefixLen = len(prefix)
	}
}

// remove deletes the entry at prefix and recomputes maxPrefixLen
// lazily if the removed entry was the longest.
func (t *Table[V]) remove(prefix wkey.Key) {
	delete(t.entries, string(prefix))
	if len(prefix) == t.maxPrefixLen {
		max := 0
		for k := range t.entries {
			if len(k) > max {
				max = len(k)
			}
		}
		t.maxPrefixLen = max
	}
}

// LongestPrefixMatch returns the descriptor stored at the longest
// prefix of key that exists in the table, found via binary search over
// prefix length (spec.md §4.3). The root ("") entry always exists
// after initialization, so a match is always found.
func (t *Table[V]) LongestPrefixMatch(key wkey.Key) NodeMeta[V] {
	limit := len(key)
	if t.maxPrefixLen < limit {
		limit = t.maxPrefixLen
	}
	lo, hi := 0, limit
	// invariant: key[0:lo] is in the table; key[0:hi+1] (when checked)
	// is not known to be. We binary search for the largest m in
	// [0, limit] such that key[0:m] is present.
	best := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		if _, ok := t.entries[string(key[:mid])]; ok {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	m, ok := t.entries[string(key[:best])]
	if !ok {
		panic(&Violation{Op: "LongestPrefixMatch", Prefix: key, Message: "no entry found, root missing"})
	}
	return m
}

// HandleSplit installs the Leaf descriptor for a freshly split-off
// newLeaf anchored at newAnchor, then walks every strict prefix of
// newAnchor (shortest to longest omitted — increasing length, per
// spec.md §4.3) updating or creating Internal descriptors so the trie
// metadata stays consistent with invariants I4 and I6.
func (t *Table[V]) HandleSplit(newAnchor wkey.Key, newLeaf *leaf.Node[V]) {
	if _, exists := t.entries[string(newAnchor)]; exists {
		panic(&Violation{Op: "HandleSplit", Prefix: newAnchor, Message: "anchor already present"})
	}
	t.Put(newAnchor, &Leaf[V]{anchorPrefix: newAnchor.Clone(), Node: newLeaf})

	for l := 0; l < len(newAnchor); l++ {
		p := newAnchor[:l]
		b := newAnchor[l]

		existing, ok := t.entries[string(p)]
		if !ok {
			in := &Internal[V]{anchorPrefix: p.Clone(), Leftmost: newLeaf, Rightmost: newLeaf}
			in.Bitmap[b] = true
			t.Put(p, in)
			continue
		}

		var in *Internal[V]
		if lf, isLeaf := existing.(*Leaf[V]); isLeaf {
			// I4: an Internal cannot share this prefix with a Leaf.
			// Reinsert the existing leaf under p||SmallestToken and
			// replace this entry with an Internal, then apply the
			// same bitmap/leftmost/rightmost update as the Internal
			// case below.
			collidedAnchor := wkey.WithSmallestToken(p)
			t.remove(p)
			t.Put(collidedAnchor, &Leaf[V]{anchorPrefix: collidedAnchor, Node: lf.Node})

			in = &Internal[V]{anchorPrefix: p.Clone(), Leftmost: lf.Node, Rightmost: lf.Node}
			in.Bitmap[wkey.SmallestToken] = true
			t.Put(p, in)
		} else {
			in = existing.(*Internal[V])
		}

		in.Bitmap[b] = true
		if in.Leftmost == newLeaf.Right {
			in.Leftmost = newLeaf
		}
		if in.Rightmost == newLeaf.Left {
			in.Rightmost = newLeaf
		}
	}
}

// HandleMerge removes the Leaf descriptor for victim (anchored at
// victimAnchor, which has just been absorbed by its left sibling) and
// walks victimAnchor's strict prefixes from longest to shortest,
// clearing bitmap bits and pruning empty Internal descriptors, per
// spec.md §4.3 and design note (c): the byte cleared at each prefix
// length is always taken from the victim's anchor, never the
// surviving left sibling's.
func (t *Table[V]) HandleMerge(victimAnchor wkey.Key, victim *leaf.Node[V]) {
	t.remove(victimAnchor)

	childRemoved := true
	for l := len(victimAnchor) - 1; l >= 0; l-- {
		p := victimAnchor[:l]
		b := victimAnchor[l]

		existing, ok := t.entries[string(p)]
		if !ok {
			panic(&Violation{Op: "HandleMerge", Prefix: p, Message: "expected Internal entry missing"})
		}
		in, ok := existing.(*Internal[V])
		if !ok {
			panic(&Violation{Op: "HandleMerge", Prefix: p, Message: "expected Internal entry, found Leaf"})
		}

		if childRemoved {
			in.Bitmap[b] = false
		}

		empty := true
		for _, set := range in.Bitmap {
			if set {
				empty = false
				break
			}
		}
		if empty {
			t.remove(p)
			childRemoved = true
			continue
		}

		childRemoved = false
		changed := false
		if in.Leftmost == victim {
			in.Leftmost = victim.Right
			changed = true
		}
		if in.Rightmost == victim {
			in.Rightmost = victim.Left
			changed = true
		}
		if !changed {
			break
		}
	}
}

// FindOneSibling returns the closest set bit to missing in bitmap,
// preferring the left (lower) direction on ties per spec.md §9 design
// note (b). ok is false if the bitmap is entirely empty.
func FindOneSibling(bitmap [256]bool, missing byte) (sibling byte, ok bool) {
	for d := 0; d <= 255; d++ {
		if int(missing)-d >= 0 && bitmap[missing-byte(d)] {
			return missing - byte(d), true
		}
		if d > 0 && int(missing)+d <= 255 && bitmap[missing+byte(d)] {
			return missing + byte(d), true
		}
	}
	return 0, false
}
