// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package malloc

// Ptr is a payload pointer: the heap-base-relative byte offset of the
// first payload byte of a block. Zero is the null sentinel — offset 0
// always lies inside the bins array / prologue and can never be a valid
// payload (spec.md §5, mirroring lldb.Allocator's handle == 0 null
// convention).
type Ptr int64

// Null is the sentinel returned by Allocate on failure or for a zero
// length request.
const Null Ptr = 0

// Field offsets of a free block, relative to its payload pointer
// (spec.md §6 "Free-block intra-links").
const (
	offSucc   = 0
	offPred   = 4
	offLeft   = 8
	offRight  = 16
	offParent = 24
)

func (a *Allocator) headerAddr(p Ptr) int64 { return int64(p) - 4 }

func (a *Allocator) footerAddr(p Ptr, size uint32) int64 { return int64(p) + int64(size) - 8 }

func (a *Allocator) readHeader(p Ptr) header {
	return header(a.mem.ReadUint32(a.headerAddr(p)))
}

func (a *Allocator) writeHeader(p Ptr, h header) {
	a.mem.WriteUint32(a.headerAddr(p), uint32(h))
}

// hasFooter reports whether a free block of size carries a footer
// (spec.md §3: present only when free and larger than the minimum).
func hasFooter(size uint32) bool { return size > MinSize }

func (a *Allocator) readFooter(p Ptr, size uint32) header {
	return header(a.mem.ReadUint32(a.footerAddr(p, size)))
}

func (a *Allocator) writeFooter(p Ptr, h header) {
	a.mem.WriteUint32(a.footerAddr(p, h.size()), uint32(h))
}

// writeBoundaryTag writes h as p's header and, when the block is free
// and larger than MinSize, as its footer too. Centralizing header/footer
// writes here is the one subtle correctness requirement spec.md §9
// flags: prev_alloc/prev_small must never be updated partially.
func (a *Allocator) writeBoundaryTag(p Ptr, h header) {
	a.writeHeader(p, h)
	if !h.isAlloc() && hasFooter(h.size()) {
		a.writeFooter(p, h)
	}
}

// blockSize returns the size of the block at p.
func (a *Allocator) blockSize(p Ptr) uint32 { return a.readHeader(p).size() }

// next returns the payload pointer of the block physically following p.
func (a *Allocator) next(p Ptr) Ptr {
	return p + Ptr(a.readHeader(p).size())
}

// prev returns the payload pointer of the block physically preceding p.
// Only valid when p's header has prevAlloc == false, i.e. the
// predecessor is free and therefore carries a footer (or is prevSmall,
// needing none) — spec.md §4.2.
func (a *Allocator) prev(p Ptr) Ptr {
	h := a.readHeader(p)
	if h.isPrevSmall() {
		return p - MinSize
	}
	prevFooter := header(a.mem.ReadUint32(a.headerAddr(p) - 4))
	return p - Ptr(prevFooter.size())
}

// setNextPrevFlags updates the prevAlloc/prevSmall bits that next's
// header carries about its physical predecessor, without disturbing
// anything else in that header.
func (a *Allocator) setNextPrevFlags(next Ptr, alloc, small bool) {
	h := a.readHeader(next)
	h = h.withPrevAlloc(alloc).withPrevSmall(small)
	a.writeHeader(next, h)
}

func (a *Allocator) readSucc(p Ptr) Ptr  { return Ptr(a.mem.ReadUint32(int64(p) + offSucc)) }
func (a *Allocator) writeSucc(p Ptr, v Ptr) { a.mem.WriteUint32(int64(p)+offSucc, uint32(v)) }
func (a *Allocator) readPred(p Ptr) Ptr  { return Ptr(a.mem.ReadUint32(int64(p) + offPred)) }
func (a *Allocator) writePred(p Ptr, v Ptr) { a.mem.WriteUint32(int64(p)+offPred, uint32(v)) }

func (a *Allocator) readLeft(p Ptr) Ptr    { return Ptr(a.mem.ReadInt64(int64(p) + offLeft)) }
func (a *Allocator) writeLeft(p Ptr, v Ptr) { a.mem.WriteInt64(int64(p)+offLeft, int64(v)) }
func (a *Allocator) readRight(p Ptr) Ptr   { return Ptr(a.mem.ReadInt64(int64(p) + offRight)) }
func (a *Allocator) writeRight(p Ptr, v Ptr) { a.mem.WriteInt64(int64(p)+offRight, int64(v)) }
func (a *Allocator) readParent(p Ptr) Ptr  { return Ptr(a.mem.ReadInt64(int64(p) + offParent)) }
func (a *Allocator) writeParent(p Ptr, v Ptr) { a.mem.WriteInt64(int64(p)+offParent, int64(v)) }

// isLarge reports whether a free block of size carries tree links.
func isLarge(size uint32) bool { return size > Threshold }
