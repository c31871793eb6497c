// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package malloc

import "testing"

// freeMinSizeBlocks returns n distinct MinSize free blocks, each
// separated by a still-allocated guard block so Release does not
// coalesce them into one another.
func freeMinSizeBlocks(a *Allocator, n int) []Ptr {
	var out []Ptr
	for i := 0; i < n; i++ {
		p := a.Allocate(1)
		out = append(out, p)
		a.Allocate(1) // guard, kept allocated.
	}
	for _, p := range out {
		a.Release(p)
	}
	return out
}

func TestBinInsertIsLIFO(t *testing.T) {
	a := newTestAllocator(t, Options{})
	ps := freeMinSizeBlocks(a, 3)

	i := sizeClassIndex(MinSize)
	if g := a.binHead(i); g != ps[2] {
		t.Fatalf("binHead = %#x, want most recently freed %#x", g, ps[2])
	}
}

func TestBinRemoveSinglyHead(t *testing.T) {
	a := newTestAllocator(t, Options{})
	ps := freeMinSizeBlocks(a, 2)
	i := sizeClassIndex(MinSize)

	a.binRemoveSingly(i, ps[1]) // remove the head.
	if g := a.binHead(i); g != ps[0] {
		t.Fatalf("binHead after removing head = %#x, want %#x", g, ps[0])
	}
	a.binInsert(ps[1], MinSize) // restore for Verify.
	if err := a.Verify(nil); err != nil {
		t.Fatal(err)
	}
}

func TestBinRemoveSinglyMiddle(t *testing.T) {
	a := newTestAllocator(t, Options{})
	ps := freeMinSizeBlocks(a, 3) // head is ps[2], then ps[1], then ps[0].

	a.binRemoveSingly(sizeClassIndex(MinSize), ps[1])
	if g := a.readSucc(ps[2]); g != ps[0] {
		t.Fatalf("middle removal left succ = %#x, want %#x", g, ps[0])
	}
	a.binInsert(ps[1], MinSize)
	if err := a.Verify(nil); err != nil {
		t.Fatal(err)
	}
}

func TestBinRemoveSinglyNotFoundPanics(t *testing.T) {
	a := newTestAllocator(t, Options{})
	p := a.Allocate(1)
	a.Allocate(1) // guard, kept allocated so p stays a MinSize free block.
	a.Release(p)
	i := sizeClassIndex(MinSize)
	a.binRemoveSingly(i, p) // actually remove it first.

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic removing an absent block")
		}
	}()
	a.binRemoveSingly(i, p)
}

func TestBinDoublyLinkedRemoveMiddle(t *testing.T) {
	a := newTestAllocator(t, Options{})
	// 12-byte payload requests make 16-byte blocks, a size class above
	// MinSize whose free blocks carry a predecessor field.
	var ps []Ptr
	for i := 0; i < 3; i++ {
		ps = append(ps, a.Allocate(12))
		a.Allocate(12) // guard.
	}
	for _, p := range ps {
		a.Release(p)
	}

	size := a.blockSize(ps[1])
	a.binRemove(ps[1], size)
	if err := a.Verify(nil); err == nil {
		t.Fatal("expected Verify to flag the now-orphaned free block")
	}
	a.binInsert(ps[1], size) // restore invariants.
	if err := a.Verify(nil); err != nil {
		t.Fatal(err)
	}
}

func TestBinHeadOfEmptyClass(t *testing.T) {
	a := newTestAllocator(t, Options{})
	if g := a.binHeadOf(16); g != Null {
		t.Fatalf("binHeadOf on an empty class = %#x, want Null", g)
	}
}
