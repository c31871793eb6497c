// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package malloc

// Block size and header bit layout, per spec.md §3/§4.1/§6.
const (
	// MinSize is the smallest possible block: a 4-byte header plus a
	// single 4-byte successor offset. Free blocks of exactly this size
	// carry no footer and no predecessor field.
	MinSize = 8

	// Threshold is the largest free-block size still served by a
	// size-class bin rather than the BST. A free block needs, at full
	// size, succ(4)+pred(4)+left(8)+right(8)+parent(8)+footer(4) = 36
	// bytes, which rounds up to the next 8-byte block size of 40; so
	// blocks of size > Threshold (i.e. >= 48) are the ones with room for
	// tree links at the fixed offsets spec.md §6 names.
	Threshold = 40

	// NumSizeClasses is the count of single-size bins: {8,16,24,32,40}.
	NumSizeClasses = (Threshold - MinSize) / 8 + 1

	// NumBins is NumSizeClasses plus one slot for the BST root.
	NumBins = NumSizeClasses + 1

	treeBin = NumBins - 1

	flagAlloc     uint32 = 1 << 0
	flagPrevAlloc uint32 = 1 << 1
	flagPrevSmall uint32 = 1 << 2
	sizeMask      uint32 = ^uint32(0x7)
)

// header is a packed 4-byte boundary tag: size in its upper 29 bits
// (always a multiple of 8, so the low 3 bits are free for status), with
// alloc/prevAlloc/prevSmall in bits 0/1/2.
type header uint32

// packHeader builds a header word. size must be a non-negative multiple
// of 8.
func packHeader(size uint32, alloc, prevAlloc, prevSmall bool) header {
	if size&0x7 != 0 {
		panic("malloc: size not a multiple of 8")
	}
	h := size
	if alloc {
		h |= flagAlloc
	}
	if prevAlloc {
		h |= flagPrevAlloc
	}
	if prevSmall {
		h |= flagPrevSmall
	}
	return header(h)
}

func (h header) size() uint32       { return uint32(h) & sizeMask }
func (h header) isAlloc() bool      { return uint32(h)&flagAlloc != 0 }
func (h header) isPrevAlloc() bool  { return uint32(h)&flagPrevAlloc != 0 }
func (h header) isPrevSmall() bool  { return uint32(h)&flagPrevSmall != 0 }
func (h header) unpack() (size uint32, alloc, prevAlloc, prevSmall bool) {
	return h.size(), h.isAlloc(), h.isPrevAlloc(), h.isPrevSmall()
}

// withPrevAlloc returns h with its prevAlloc bit set to v, all other
// fields unchanged.
func (h header) withPrevAlloc(v bool) header {
	u := uint32(h) &^ flagPrevAlloc
	if v {
		u |= flagPrevAlloc
	}
	return header(u)
}

// withPrevSmall returns h with its prevSmall bit set to v, all other
// fields unchanged.
func (h header) withPrevSmall(v bool) header {
	u := uint32(h) &^ flagPrevSmall
	if v {
		u |= flagPrevSmall
	}
	return header(u)
}

// sizeClassIndex returns the bins[] slot for a free block of size, or -1
// if size belongs in the BST (size > Threshold).
func sizeClassIndex(size uint32) int {
	if size > Threshold {
		return -1
	}
	return int((size-MinSize)/8) // 0..NumSizeClasses-1
}

// alignUp rounds n up to the next multiple of 8.
func alignUp(n int64) int64 {
	return (n + 7) &^ 7
}
