package wormint

import (
	"testing"

	"wormhole/pkg/wormhole"
)

func TestWormholeForIntKeyGetPutDelete(t *testing.T) {
	wh := NewForIntKey[string](wormhole.Options{LeafSize: 8})

	wh.Put(5, "five")
	wh.Put(-3, "neg-three")
	wh.Put(0, "zero")

	if v, ok := wh.Get(5); !ok || v != "five" {
		t.Fatalf("Get(5) = (%q, %v), want (five, true)", v, ok)
	}
	if !wh.Delete(-3) {
		t.Fatalf("Delete(-3) = false")
	}
	if _, ok := wh.Get(-3); ok {
		t.Errorf("Get(-3) found after delete")
	}
}

func TestWormholeForIntKeyScanOrdersNumerically(t *testing.T) {
	wh := NewForIntKey[int](wormhole.Options{LeafSize: 128})
	for _, v := range []int32{100, -5, 1 << 20, 0, -1000} {
		wh.Put(v, int(v))
	}

	var got []int32
	wh.Scan(nil, nil, false, func(key int32, value int) bool {
		got = append(got, key)
		return true
	})
	want := []int32{-1000, -5, 0, 100, 1 << 20}
	if len(got) != len(want) {
		t.Fatalf("Scan = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestWormholeForLongKeyGetPutDelete(t *testing.T) {
	wh := NewForLongKey[string](wormhole.Options{LeafSize: 8})

	wh.Put(1<<40, "big")
	wh.Put(-1<<40, "neg-big")

	if v, ok := wh.Get(1 << 40); !ok || v != "big" {
		t.Fatalf("Get(1<<40) = (%q, %v), want (big, true)", v, ok)
	}
	if !wh.Delete(1 << 40) {
		t.Fatalf("Delete(1<<40) = false")
	}
}

func TestWormholeForLongKeyScanOrdersNumerically(t *testing.T) {
	wh := NewForLongKey[int](wormhole.Options{LeafSize: 128})
	values := []int64{1 << 62, -1 << 62, 0, 42}
	for _, v := range values {
		wh.Put(v, int(v))
	}

	var got []int64
	start := int64(-1 << 62)
	wh.Scan(&start, nil, false, func(key int64, value int) bool {
		got = append(got, key)
		return true
	})
	want := []int64{-1 << 62, 0, 42, 1 << 62}
	if len(got) != len(want) {
		t.Fatalf("Scan = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
