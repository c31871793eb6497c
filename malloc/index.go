// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package malloc

// The Free Index: the union of the size-class bins (bins.go) and the
// size-keyed BST (tree.go) that together locate free blocks by size
// (spec.md §2/§4). Every free block lives in exactly one of the two.

// indexInsert adds the free block p of size to whichever half of the
// Free Index its size belongs in.
func (a *Allocator) indexInsert(p Ptr, size uint32) {
	if size <= Threshold {
		a.binInsert(p, size)
		return
	}
	a.treeInsert(p, size)
}

// indexRemove removes the free block p of size from the Free Index.
func (a *Allocator) indexRemove(p Ptr, size uint32) {
	if size <= Threshold {
		a.binRemove(p, size)
		return
	}
	a.treeRemove(p)
}

// findFit returns the best-fit free block for a request of size size, or
// Null if none exists. Exact-size classes are checked before falling
// back to the BST's smallest-size-at-least search, since an exact size
// class hit is automatically a best fit.
func (a *Allocator) findFit(size uint32) Ptr {
	if size <= Threshold {
		for s := size; s <= Threshold; s += 8 {
			if p := a.binHeadOf(s); p != Null {
				return p
			}
		}
		return a.treeFindBestFit(Threshold + 8)
	}
	return a.treeFindBestFit(size)
}
