// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package malloc

import (
	"sort"

	"github.com/cznic/sortutil"
)

// The heap-checker: walks the heap and the Free Index and cross-checks
// them against spec.md §8's universal invariants. Grounded on
// lldb/falloc.go's phased Allocator.Verify (heap walk, then free-list
// walk, reconciled through a bitmap to catch lost or duplicated free
// blocks) and lldb/xact.go's bitFiler paged-bitmap technique — adapted
// here from tracking per-page write-dirtiness (for transaction rollback,
// which this package has no use for) to tracking "seen on the heap walk,
// not yet matched in the Free Index" per block.

const bitmapPageBits = 1 << 12 // bits per page, 512 bytes/page.

// blockBitmap is a page-chunked bitmap indexed by block offset/8, so a
// large heap does not need one giant contiguous slice.
type blockBitmap struct {
	pages map[int64][]byte
}

func newBlockBitmap() *blockBitmap {
	return &blockBitmap{pages: map[int64][]byte{}}
}

func (b *blockBitmap) locate(off int64) (page, byteIdx, bitIdx int64) {
	idx := off / 8
	page = idx / bitmapPageBits
	bit := idx % bitmapPageBits
	return page, bit / 8, bit % 8
}

// set marks off as seen, reporting whether it was already set.
func (b *blockBitmap) set(off int64) bool {
	page, byteIdx, bitIdx := b.locate(off)
	buf, ok := b.pages[page]
	if !ok {
		buf = make([]byte, bitmapPageBits/8)
		b.pages[page] = buf
	}
	mask := byte(1) << uint(bitIdx)
	was := buf[byteIdx]&mask != 0
	buf[byteIdx] |= mask
	return was
}

// clear unmarks off, reporting whether it had been set.
func (b *blockBitmap) clear(off int64) bool {
	page, byteIdx, bitIdx := b.locate(off)
	buf, ok := b.pages[page]
	if !ok {
		return false
	}
	mask := byte(1) << uint(bitIdx)
	was := buf[byteIdx]&mask != 0
	buf[byteIdx] &^= mask
	return was
}

// each calls f(off) for every bit still set.
func (b *blockBitmap) each(f func(off int64)) {
	for page, buf := range b.pages {
		for byteIdx, v := range buf {
			if v == 0 {
				continue
			}
			for bitIdx := 0; bitIdx < 8; bitIdx++ {
				if v&(1<<uint(bitIdx)) != 0 {
					idx := page*bitmapPageBits + int64(byteIdx*8+bitIdx)
					f(idx * 8)
				}
			}
		}
	}
}

// Verify walks the heap and the Free Index, reporting every invariant
// violation it finds via log (called once per violation; a false return
// stops the walk early, the same contract lldb's Verify uses). It
// returns the first error found, or nil if none. Verify is a debug/test
// tool (spec.md §7 #3) — Allocate/Release/Resize never call it unless
// Options.Checked is set.
func (a *Allocator) Verify(log func(error) bool) error {
	if log == nil {
		log = func(error) bool { return true }
	}

	var first error
	stopped := false
	report := func(e error) bool {
		if first == nil {
			first = e
		}
		if !log(e) {
			stopped = true
		}
		return !stopped
	}

	bm := newBlockBitmap()
	heapStart := a.prologuePtr + MinSize
	epilogueAddr := a.mem.High() - 4

	freeCountHeap := 0
	prevWasFree := false
	for p := heapStart; int64(p) < epilogueAddr && !stopped; {
		h := a.readHeader(p)
		size := h.size()

		if int64(p)%8 != 0 {
			if !report(&CorruptionError{Msg: "payload not 8-byte aligned", At: p}) {
				return first
			}
		}
		if size < MinSize || size%8 != 0 {
			report(&CorruptionError{Msg: "block size invalid", At: p})
			return first // cannot safely keep walking past a bad size.
		}

		if !h.isAlloc() {
			freeCountHeap++
			bm.set(int64(p))
			if prevWasFree {
				report(&CorruptionError{Msg: "two adjacent free blocks", At: p})
			}
			if hasFooter(size) {
				if f := a.readFooter(p, size); f != h {
					report(&CorruptionError{Msg: "header/footer mismatch", At: p})
				}
			}
		}

		next := p + Ptr(size)
		if int64(next) <= epilogueAddr {
			nextH := a.readHeader(next)
			if nextH.isPrevAlloc() != h.isAlloc() {
				report(&CorruptionError{Msg: "successor prevAlloc inconsistent", At: next})
			}
			if nextH.isPrevSmall() != (size == MinSize) {
				report(&CorruptionError{Msg: "successor prevSmall inconsistent", At: next})
			}
		}

		prevWasFree = !h.isAlloc()
		p = next
	}
	if stopped {
		return first
	}

	freeCountIndex := 0
	walkList := func(head Ptr, expectSize uint32) {
		for cur := head; cur != Null && !stopped; cur = a.readSucc(cur) {
			freeCountIndex++
			if expectSize != 0 {
				if sz := a.blockSize(cur); sz != expectSize {
					report(&CorruptionError{Msg: "size-class bin holds wrong size", At: cur})
				}
			}
			if !bm.clear(int64(cur)) {
				report(&CorruptionError{Msg: "free block in Index missing/duplicated on heap walk", At: cur})
			}
		}
	}

	for i := 0; i < NumSizeClasses; i++ {
		walkList(a.binHead(i), uint32(MinSize+8*i))
	}

	// Iterative in-order BST walk (spec.md §9: no recursion on a
	// possibly-degenerate tree).
	var stack []Ptr
	cur := a.treeRoot()
	haveLast := false
	var lastSize uint32
	for !stopped && (cur != Null || len(stack) > 0) {
		for cur != Null {
			stack = append(stack, cur)
			if left := a.readLeft(cur); left != Null {
				if a.readParent(left) != cur {
					report(&CorruptionError{Msg: "tree parent link broken", At: left})
				}
				cur = left
			} else {
				cur = Null
			}
		}
		cur, stack = stack[len(stack)-1], stack[:len(stack)-1]
		sz := a.blockSize(cur)
		if haveLast && sz <= lastSize {
			report(&CorruptionError{Msg: "BST not strictly increasing in-order", At: cur})
		}
		lastSize, haveLast = sz, true
		walkList(cur, 0)
		right := a.readRight(cur)
		if right != Null && a.readParent(right) != cur {
			report(&CorruptionError{Msg: "tree parent link broken", At: right})
		}
		cur = right
	}

	if stopped {
		return first
	}

	if freeCountHeap != freeCountIndex {
		if !report(&CorruptionError{Msg: "free block count mismatch between heap walk and Free Index"}) {
			return first
		}
	}

	lost := make(sortutil.Int64Slice, 0)
	bm.each(func(off int64) { lost = append(lost, off) })
	sort.Sort(lost) // deterministic reporting order.
	for _, off := range lost {
		if !report(&CorruptionError{Msg: "free block present on heap walk but missing from Free Index", At: Ptr(off)}) {
			break
		}
	}

	return first
}
