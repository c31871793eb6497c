// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package malloc

// coalesce merges the just-freed block at p with any free physical
// neighbors, maintaining the invariant that no two adjacent blocks are
// ever both free (spec.md §4.5). p's header (and footer, if it carries
// one) must already be written as free, but p must not yet be in the
// Free Index — coalesce removes any merged neighbor from the Index and
// inserts the final, possibly larger, block itself. It returns the
// payload pointer of the resulting free block.
func (a *Allocator) coalesce(p Ptr) Ptr {
	h := a.readHeader(p)
	size := h.size()
	prevAlloc := h.isPrevAlloc()

	next := p + Ptr(size)
	nextAlloc := a.readHeader(next).isAlloc()

	switch {
	case prevAlloc && nextAlloc:
		a.setNextPrevFlags(next, false, size == MinSize)
		a.indexInsert(p, size)
		return p

	case prevAlloc && !nextAlloc:
		nextSize := a.blockSize(next)
		after := next + Ptr(nextSize)
		a.indexRemove(next, nextSize)

		newSize := size + nextSize
		newH := packHeader(newSize, false, h.isPrevAlloc(), h.isPrevSmall())
		a.writeBoundaryTag(p, newH)
		a.setNextPrevFlags(after, false, newSize == MinSize)
		a.indexInsert(p, newSize)
		return p

	case !prevAlloc && nextAlloc:
		prev := a.prev(p)
		prevSize := a.blockSize(prev)
		prevH := a.readHeader(prev)
		a.indexRemove(prev, prevSize)

		newSize := prevSize + size
		newH := packHeader(newSize, false, prevH.isPrevAlloc(), prevH.isPrevSmall())
		a.writeBoundaryTag(prev, newH)
		a.setNextPrevFlags(next, false, newSize == MinSize)
		a.indexInsert(prev, newSize)
		return prev

	default: // !prevAlloc && !nextAlloc
		prev := a.prev(p)
		prevSize := a.blockSize(prev)
		prevH := a.readHeader(prev)
		nextSize := a.blockSize(next)
		after := next + Ptr(nextSize)

		a.indexRemove(prev, prevSize)
		a.indexRemove(next, nextSize)

		newSize := prevSize + size + nextSize
		newH := packHeader(newSize, false, prevH.isPrevAlloc(), prevH.isPrevSmall())
		a.writeBoundaryTag(prev, newH)
		a.setNextPrevFlags(after, false, newSize == MinSize)
		a.indexInsert(prev, newSize)
		return prev
	}
}
