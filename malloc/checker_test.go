// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package malloc

import "testing"

func TestVerifyCleanHeap(t *testing.T) {
	a := newTestAllocator(t, Options{})
	for _, n := range []int{8, 64, 512, 1, 4096} {
		p := a.Allocate(n)
		if n%2 == 0 {
			a.Release(p)
		}
	}
	if err := a.Verify(nil); err != nil {
		t.Fatal(err)
	}
}

func TestVerifyDetectsHeaderFooterMismatch(t *testing.T) {
	a := newTestAllocator(t, Options{})
	p := a.Allocate(64)
	a.Release(p)

	// Corrupt the footer directly, bypassing writeBoundaryTag.
	h := a.readHeader(p)
	a.mem.WriteUint32(a.footerAddr(p, h.size()), uint32(h)^1)

	if err := a.Verify(nil); err == nil {
		t.Fatal("expected Verify to detect the header/footer mismatch")
	}
}

func TestVerifyDetectsLostFreeBlock(t *testing.T) {
	a := newTestAllocator(t, Options{})
	p := a.Allocate(64)
	a.Release(p)
	a.indexRemove(p, a.blockSize(p)) // still free on the heap, but unindexed now.

	if err := a.Verify(nil); err == nil {
		t.Fatal("expected Verify to detect a free block missing from the Free Index")
	}

	// Restore consistency and check that Verify accepts the heap again.
	a.indexInsert(p, a.blockSize(p))
	if err := a.Verify(nil); err != nil {
		t.Fatal(err)
	}
}

func TestVerifyLogCallback(t *testing.T) {
	a := newTestAllocator(t, Options{})
	p := a.Allocate(64)
	a.Release(p)
	a.indexRemove(p, a.blockSize(p))

	var got []error
	err := a.Verify(func(e error) bool {
		got = append(got, e)
		return true // keep walking to collect every violation.
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(got) == 0 {
		t.Fatal("log callback never invoked")
	}

	a.indexInsert(p, a.blockSize(p))
}

func TestBlockBitmapSetClear(t *testing.T) {
	bm := newBlockBitmap()
	if bm.set(800) {
		t.Fatal("set on a fresh bitmap reported already-set")
	}
	if !bm.set(800) {
		t.Fatal("second set did not report already-set")
	}
	if !bm.clear(800) {
		t.Fatal("clear did not report it had been set")
	}
	if bm.clear(800) {
		t.Fatal("clearing twice reported set")
	}
}

func TestBlockBitmapEach(t *testing.T) {
	bm := newBlockBitmap()
	want := map[int64]bool{0: true, 800: true, 1 << 20: true}
	for off := range want {
		bm.set(off)
	}
	got := map[int64]bool{}
	bm.each(func(off int64) { got[off] = true })
	if len(got) != len(want) {
		t.Fatalf("each visited %d offsets, want %d", len(got), len(want))
	}
	for off := range want {
		if !got[off] {
			t.Fatalf("each missed offset %d", off)
		}
	}
}
