// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package malloc

// place consumes the free block p (already known to have size >= reqSize)
// to satisfy a request of reqSize bytes, splitting off and reinserting a
// residual free block when the leftover is itself a usable block
// (spec.md §4.6). p is removed from the Free Index as the first step.
func (a *Allocator) place(p Ptr, reqSize uint32) {
	h := a.readHeader(p)
	freeSize := h.size()
	a.indexRemove(p, freeSize)

	remainder := freeSize - reqSize
	if remainder >= MinSize {
		allocH := packHeader(reqSize, true, h.isPrevAlloc(), h.isPrevSmall())
		a.writeHeader(p, allocH) // allocated: header only, no footer.

		residual := p + Ptr(reqSize)
		residualH := packHeader(remainder, false, true, reqSize == MinSize)
		a.writeBoundaryTag(residual, residualH)

		succ := residual + Ptr(remainder)
		a.setNextPrevFlags(succ, false, remainder == MinSize)

		a.indexInsert(residual, remainder)
		return
	}

	// Leftover too small to host its own block: consume it all.
	allocH := packHeader(freeSize, true, h.isPrevAlloc(), h.isPrevSmall())
	a.writeHeader(p, allocH)

	succ := p + Ptr(freeSize)
	a.setNextPrevFlags(succ, true, freeSize == MinSize)
}
