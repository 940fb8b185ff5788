package wormhole

import (
	"testing"

	"wormhole/pkg/meta"
	"wormhole/pkg/wkey"
)

func TestGetPutBasic(t *testing.T) {
	wh := New[int](Options{LeafSize: 128})

	wh.Put([]byte("A"), 1)
	wh.Put([]byte("B"), 2)

	if v, ok := wh.Get([]byte("A")); !ok || v != 1 {
		t.Fatalf("Get(A) = (%d, %v), want (1, true)", v, ok)
	}
	if _, ok := wh.Get([]byte("Z")); ok {
		t.Errorf("Get(Z) found, want absent")
	}
}

// Scenario 1 (spec.md §8): insert A..E with leaf_size=4, expect one
// split, in-order scan, exactly 2 leaves.
func TestScenario1SplitOnOverflow(t *testing.T) {
	wh := New[int](Options{LeafSize: 4})

	keys := []string{"A", "B", "C", "D", "E"}
	for i, k := range keys {
		wh.Put([]byte(k), i+1)
	}

	if v, ok := wh.Get([]byte("C")); !ok || v != 3 {
		t.Fatalf("Get(C) = (%d, %v), want (3, true)", v, ok)
	}

	var got []string
	wh.Scan(nil, nil, false, func(key []byte, value int) bool {
		got = append(got, string(key))
		return true
	})
	want := []string{"A", "B", "C", "D", "E"}
	if !equalSlices(got, want) {
		t.Fatalf("Scan = %v, want %v", got, want)
	}

	leafCount := countLeaves(wh)
	if leafCount != 2 {
		t.Errorf("leaf count = %d, want 2", leafCount)
	}

	checkRootLeftmostRightmost(t, wh)
}

// Scenario 2 (spec.md §8): a cluster of keys sharing prefixes "al"/"am"
// splits on a shared-prefix boundary.
func TestScenario2PrefixClusterSplit(t *testing.T) {
	wh := New[int](Options{LeafSize: 4})

	entries := []struct {
		key   string
		value int
	}{
		{"alpha", 1}, {"alpine", 2}, {"alto", 3}, {"amber", 4}, {"amend", 5},
	}
	for _, e := range entries {
		wh.Put([]byte(e.key), e.value)
	}

	if v, ok := wh.Get([]byte("amber")); !ok || v != 4 {
		t.Fatalf("Get(amber) = (%d, %v), want (4, true)", v, ok)
	}

	var got []string
	wh.Scan([]byte("al"), []byte("an"), true, func(key []byte, value int) bool {
		got = append(got, string(key))
		return true
	})
	want := []string{"alpha", "alpine", "alto", "amber", "amend"}
	if !equalSlices(got, want) {
		t.Fatalf("Scan(al, an) = %v, want %v", got, want)
	}
}

// Scenario 3 (spec.md §8): integer keys via the big-endian sign-biased
// encoding used by wormint, driven here directly through the byte-key
// core.
func TestScenario3IntegerKeyOrdering(t *testing.T) {
	wh := New[int](Options{LeafSize: 128})

	enc := func(v int64) []byte {
		b := make([]byte, 8)
		u := uint64(v) ^ 0x8000000000000000
		for i := 7; i >= 0; i-- {
			b[i] = byte(u)
			u >>= 8
		}
		return b
	}

	for _, v := range []int64{100, -5, 1 << 62, 0} {
		wh.Put(enc(v), int(v))
	}

	var got []int
	wh.Scan(enc(-1), enc(101), true, func(key []byte, value int) bool {
		got = append(got, value)
		return true
	})
	want := []int{0, 100}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

// Scenario 4 (spec.md §8): delete-triggered merge.
func TestScenario4DeleteTriggersMerge(t *testing.T) {
	wh := New[int](Options{LeafSize: 8})

	for i := 0; i < 16; i++ {
		wh.Put([]byte{byte('a' + i)}, i)
	}
	if countLeaves(wh) < 2 {
		t.Fatalf("expected more than one leaf after 16 inserts at leaf_size=8")
	}

	for i := 4; i <= 11; i++ {
		if !wh.Delete([]byte{byte('a' + i)}) {
			t.Fatalf("Delete(%c) = false", 'a'+i)
		}
	}

	var got []byte
	wh.Scan(nil, nil, false, func(key []byte, value int) bool {
		got = append(got, key[0])
		return true
	})
	var want []byte
	for i := 0; i < 16; i++ {
		if i >= 4 && i <= 11 {
			continue
		}
		want = append(want, byte('a'+i))
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", string(got), string(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %c, want %c", i, got[i], want[i])
		}
	}

	if leafCount := countLeaves(wh); leafCount != 1 {
		t.Errorf("leaf count after merge = %d, want 1", leafCount)
	}

	checkRootLeftmostRightmost(t, wh)
}

// Scenario 5 (spec.md §8): a split whose candidate anchor collides
// with an existing Internal prefix falls back to anchor||SmallestToken.
func TestScenario5PrefixCollisionFallsBackToSmallestToken(t *testing.T) {
	wh := New[int](Options{LeafSize: 4, DebugMode: true})

	// Putting "Xe" splits the root at anchor "Xc", which creates an
	// Internal at "X". "U" and "W" then fill the root to
	// [U W Xa Xb], so putting "V" splits it between "W" and "Xa",
	// whose natural anchor candidate is exactly "X".
	keys := []string{"Xa", "Xb", "Xc", "Xd", "Xe", "U", "W", "V", "X"}
	for i, k := range keys {
		wh.Put([]byte(k), i)
	}

	if m, ok := wh.Meta().Get(wkey.Key("X")); !ok {
		t.Errorf("no table entry at X, want Internal")
	} else if _, isInternal := m.(*meta.Internal[int]); !isInternal {
		t.Errorf("table entry at X = %#v, want Internal", m)
	}
	if m, ok := wh.Meta().Get(wkey.WithSmallestToken(wkey.Key("X"))); !ok {
		t.Errorf("no table entry at X||SmallestToken, want Leaf")
	} else if _, isLeaf := m.(*meta.Leaf[int]); !isLeaf {
		t.Errorf("table entry at X||SmallestToken = %#v, want Leaf", m)
	}

	for _, k := range keys {
		if _, ok := wh.Get([]byte(k)); !ok {
			t.Errorf("Get(%q) not found after splits", k)
		}
	}
}

// Scenario 6 (spec.md §8): put is idempotent on overwrite and does not
// grow the leaf.
func TestScenario6UpdateOverwriteDoesNotGrowLeaf(t *testing.T) {
	wh := New[int](Options{LeafSize: 128})

	wh.Put([]byte("k"), 1)
	before := wh.locateLeaf([]byte("k")).Size()

	wh.Put([]byte("k"), 2)
	after := wh.locateLeaf([]byte("k")).Size()

	if v, ok := wh.Get([]byte("k")); !ok || v != 2 {
		t.Fatalf("Get(k) = (%d, %v), want (2, true)", v, ok)
	}
	if after != before {
		t.Errorf("leaf size changed from %d to %d on overwrite", before, after)
	}
}

func TestPutIdempotence(t *testing.T) {
	wh1 := New[int](Options{LeafSize: 4})
	wh2 := New[int](Options{LeafSize: 4})

	keys := []string{"A", "B", "C", "D", "E", "F"}
	for _, k := range keys {
		wh1.Put([]byte(k), 1)
		wh1.Put([]byte(k), 1)
		wh2.Put([]byte(k), 1)
	}

	var got1, got2 []string
	wh1.Scan(nil, nil, false, func(key []byte, value int) bool { got1 = append(got1, string(key)); return true })
	wh2.Scan(nil, nil, false, func(key []byte, value int) bool { got2 = append(got2, string(key)); return true })
	if !equalSlices(got1, got2) {
		t.Errorf("double put diverged from single put: %v vs %v", got1, got2)
	}
}

func TestDeleteInverse(t *testing.T) {
	wh := New[int](Options{LeafSize: 8})
	for _, k := range []string{"A", "B", "C"} {
		wh.Put([]byte(k), 1)
	}

	before := scanKeys(wh)

	wh.Put([]byte("Z"), 99)
	wh.Delete([]byte("Z"))

	after := scanKeys(wh)
	if !equalSlices(before, after) {
		t.Errorf("put+delete did not restore multiset: before %v, after %v", before, after)
	}
}

func TestScanWithCount(t *testing.T) {
	wh := New[int](Options{LeafSize: 4})
	for i, k := range []string{"A", "B", "C", "D", "E", "F"} {
		wh.Put([]byte(k), i)
	}

	got := wh.ScanWithCount([]byte("B"), 3)
	want := []string{"B", "C", "D"}
	if len(got) != len(want) {
		t.Fatalf("ScanWithCount = %v, want keys %v", got, want)
	}
	for i, e := range got {
		if string(e.Key) != want[i] {
			t.Errorf("ScanWithCount[%d].Key = %q, want %q", i, e.Key, want[i])
		}
	}
}

func TestDeleteAbsentKeyReturnsFalse(t *testing.T) {
	wh := New[int](Options{LeafSize: 8})
	if wh.Delete([]byte("missing")) {
		t.Errorf("Delete on absent key = true, want false")
	}
}

func scanKeys[V any](wh *Wormhole[V]) []string {
	var out []string
	wh.Scan(nil, nil, false, func(key []byte, value V) bool {
		out = append(out, string(key))
		return true
	})
	return out
}

func countLeaves[V any](wh *Wormhole[V]) int {
	cur := wh.root
	for cur.Left != nil {
		cur = cur.Left
	}
	n := 0
	for cur != nil {
		n++
		cur = cur.Right
	}
	return n
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// checkRootLeftmostRightmost asserts I6(b)/(c): the root Internal
// descriptor's cached Leftmost/Rightmost leaves must match the actual
// ends of the leaf chain after HandleSplit/HandleMerge have run, since
// locateLeaf's Internal-routing branch depends on both being current.
func checkRootLeftmostRightmost[V any](t *testing.T, wh *Wormhole[V]) {
	t.Helper()

	m, ok := wh.Meta().Get(wkey.Key{})
	if !ok {
		t.Fatalf("root Internal descriptor missing")
	}
	in, ok := m.(*meta.Internal[V])
	if !ok {
		t.Fatalf("root descriptor = %#v, want Internal", m)
	}

	leftmost := wh.Root()
	rightmost := wh.Root()
	for rightmost.Right != nil {
		rightmost = rightmost.Right
	}

	if in.Leftmost != leftmost {
		t.Errorf("root Internal Leftmost = %v, want %v", in.Leftmost, leftmost)
	}
	if in.Rightmost != rightmost {
		t.Errorf("root Internal Rightmost = %v, want %v", in.Rightmost, rightmost)
	}
}
