// Package validate implements the debug-mode structural validator
// from spec.md §7/§8: after every mutating operation, walk the whole
// structure and confirm the leaf-chain, leaf-bound and meta-table
// invariants (I1, I4, I6, I7; properties P6-P9) still hold, producing
// a single diagnostic string on first failure. The in-leaf index
// orderings (I2 for tags, I3 for key refs) are not checked.
package validate

import (
	"fmt"

	"wormhole/pkg/leaf"
	"wormhole/pkg/meta"
	"wormhole/pkg/wkey"
)

// Check walks the leaf chain and meta table reachable from root and
// t, returning a descriptive error on the first broken invariant, or
// nil if the structure is healthy.
func Check[V any](t *meta.Table[V], root *leaf.Node[V]) error {
	if err := checkLeafChain(root); err != nil {
		return err
	}
	if err := checkLeafBounds(root); err != nil {
		return err
	}
	if err := checkMetaTable(t); err != nil {
		return err
	}
	return nil
}

// checkLeafChain verifies invariant I7: the doubly-linked leaf list is
// totally ordered by anchor key with consistent back-pointers.
func checkLeafChain[V any](root *leaf.Node[V]) error {
	if root == nil {
		return nil
	}
	// root must be the leftmost leaf.
	cur := root
	for cur.Left != nil {
		cur = cur.Left
	}

	var prev *leaf.Node[V]
	for cur != nil {
		if prev != nil {
			if cur.Left != prev {
				return fmt.Errorf("I7 violated: leaf at %q has left=%p, want %p", cur.AnchorKey(), cur.Left, prev)
			}
			if wkey.CompareAnchorKeys(prev.AnchorKey(), cur.AnchorKey()) >= 0 {
				return fmt.Errorf("I7 violated: anchors out of order %q >= %q", prev.AnchorKey(), cur.AnchorKey())
			}
		}
		if cur.Right != nil && cur.Right.Left != cur {
			return fmt.Errorf("P9 violated: leaf at %q's right sibling does not point back", cur.AnchorKey())
		}
		prev = cur
		cur = cur.Right
	}
	return nil
}

// checkLeafBounds verifies invariant I1/P6: every leaf's entries lie
// within [anchor_key, right.anchor_key), and no leaf exceeds its
// configured capacity.
func checkLeafBounds[V any](root *leaf.Node[V]) error {
	if root == nil {
		return nil
	}
	cur := root
	for cur.Left != nil {
		cur = cur.Left
	}
	for cur != nil {
		if cur.Size() > cur.MaxSize() {
			return fmt.Errorf("P6 violated: leaf at %q has %d entries, max %d", cur.AnchorKey(), cur.Size(), cur.MaxSize())
		}
		var boundErr error
		cur.Iterate(nil, nil, false, func(e leaf.Entry[V]) bool {
			if wkey.CompareAnchorKeys(e.Key, cur.AnchorKey()) < 0 {
				boundErr = fmt.Errorf("I1 violated: key %q precedes anchor %q", e.Key, cur.AnchorKey())
				return false
			}
			if cur.Right != nil && wkey.CompareAnchorKeys(e.Key, cur.Right.AnchorKey()) >= 0 {
				boundErr = fmt.Errorf("I1 violated: key %q not less than right anchor %q", e.Key, cur.Right.AnchorKey())
				return false
			}
			return true
		})
		if boundErr != nil {
			return boundErr
		}
		cur = cur.Right
	}
	return nil
}

// checkMetaTable verifies I4/P8 (every table key maps a descriptor
// whose own anchor_prefix matches that key exactly — a Leaf and an
// Internal can never be keyed under the same byte string, which the
// Go map already rules out structurally, but a descriptor drifting
// from its table key is exactly how I4 would actually break) and, for
// every Internal descriptor, P7(a)/(b)/(c): its bitmap matches table
// membership one level down, and its cached leftmost/rightmost leaves
// fall inside its own subtree.
func checkMetaTable[V any](t *meta.Table[V]) error {
	var err error
	t.Range(func(prefix wkey.Key, m meta.NodeMeta[V]) bool {
		if !wkey.Equal(m.AnchorPrefix(), prefix) {
			err = fmt.Errorf("I4 violated: table entry at %q carries anchor_prefix %q", prefix, m.AnchorPrefix())
			return false
		}
		switch node := m.(type) {
		case *meta.Leaf[V]:
			if !wkey.Equal(node.Node.AnchorKey(), prefix) {
				err = fmt.Errorf("I4 violated: leaf at %q has anchor_key %q", prefix, node.Node.AnchorKey())
				return false
			}
		case *meta.Internal[V]:
			if e := checkInternal(t, prefix, node); e != nil {
				err = e
				return false
			}
		}
		return true
	})
	return err
}

// checkInternal verifies P7 for a single Internal descriptor at prefix.
func checkInternal[V any](t *meta.Table[V], prefix wkey.Key, in *meta.Internal[V]) error {
	if !wkey.HasPrefix(in.Leftmost.AnchorKey(), prefix) {
		return fmt.Errorf("P7(b) violated: internal at %q leftmost anchor %q does not start with prefix", prefix, in.Leftmost.AnchorKey())
	}
	if !wkey.HasPrefix(in.Rightmost.AnchorKey(), prefix) {
		return fmt.Errorf("P7(b) violated: internal at %q rightmost anchor %q does not start with prefix", prefix, in.Rightmost.AnchorKey())
	}
	if in.Leftmost.Left != nil && wkey.HasPrefix(in.Leftmost.Left.AnchorKey(), prefix) {
		return fmt.Errorf("P7(c) violated: internal at %q leftmost.left anchor %q unexpectedly starts with prefix", prefix, in.Leftmost.Left.AnchorKey())
	}
	if in.Rightmost.Right != nil && wkey.HasPrefix(in.Rightmost.Right.AnchorKey(), prefix) {
		return fmt.Errorf("P7(c) violated: internal at %q rightmost.right anchor %q unexpectedly starts with prefix", prefix, in.Rightmost.Right.AnchorKey())
	}

	var haveChild [256]bool
	t.Range(func(childPrefix wkey.Key, _ meta.NodeMeta[V]) bool {
		if len(childPrefix) > len(prefix) && wkey.HasPrefix(childPrefix, prefix) {
			haveChild[childPrefix[len(prefix)]] = true
		}
		return true
	})
	for b := 0; b < 256; b++ {
		if in.Bitmap[b] != haveChild[b] {
			return fmt.Errorf("P7(a) violated: internal at %q bitmap[%d]=%v, table membership=%v", prefix, b, in.Bitmap[b], haveChild[b])
		}
	}
	return nil
}
