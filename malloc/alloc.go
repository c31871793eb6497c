// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package malloc implements a general-purpose dynamic storage allocator
// over a brk-extensible byte arena (package heap): a segregated
// size-class free list for small blocks backed by a size-keyed binary
// search tree for large ones, with boundary-tag coalescing of physically
// adjacent free blocks (spec.md §§1-6).
//
// The allocator never holds Go pointers into the arena across calls —
// every free block is addressed by Ptr, a heap-base-relative byte
// offset, the same handle-not-pointer convention lldb.Allocator uses for
// on-disk block addresses (spec.md §5).
package malloc

import (
	"fmt"

	"github.com/cznic/mathutil"

	"github.com/cznic/malloc/heap"
)

// Options configures a new Allocator (spec.md §3, mirroring dbm.Options'
// plain zero-value-is-defaults struct).
type Options struct {
	// Capacity bounds how far the underlying arena may grow via Sbrk.
	// Zero uses heap.DefaultCapacity.
	Capacity int64

	// InitialHeap is how many bytes of usable free space New
	// reserves up front, beyond the fixed bins/prologue/epilogue
	// overhead. Zero defers all growth to the first Allocate that needs
	// it.
	InitialHeap int64

	// ChunkSize is the minimum number of bytes requested from the arena
	// each time the heap must grow to satisfy an Allocate. A request
	// larger than ChunkSize still grows by exactly what it needs. Zero
	// uses DefaultChunkSize.
	ChunkSize int64

	// Checked runs Verify after every mutating operation and panics on
	// the first violation found. It is for tests and debug builds only
	// (spec.md §7 #3) — it turns every call into an O(heap size)
	// operation.
	Checked bool
}

// DefaultChunkSize is the ChunkSize Options uses when left zero.
const DefaultChunkSize = 1 << 12 // 4 KiB

// maxRequest bounds Allocate's n to what a reasonable arena can actually
// back; spec.md's Non-goals exclude multi-gigabyte single blocks, so
// requestSize rejects them outright rather than letting them fail later,
// deep inside extendHeap.
const maxRequest = 1 << 30

// Allocator is a single, non-concurrent-safe dynamic storage allocator
// over one heap.Arena. The zero value is not usable; construct one with
// New.
type Allocator struct {
	mem     *heap.Arena
	options Options

	binsBase    int64
	prologuePtr Ptr
}

// New creates an Allocator over a fresh arena and writes its prologue,
// epilogue and (empty) Free Index, growing the arena by
// options.InitialHeap bytes of usable free space besides. Grounded on
// lldb/falloc.go's NewAllocator, which likewise formats a fresh store's
// header region before handing back a ready-to-use Allocator.
func New(options Options) (*Allocator, error) {
	if options.ChunkSize <= 0 {
		options.ChunkSize = DefaultChunkSize
	}

	a := &Allocator{
		mem:     heap.New(options.Capacity),
		options: options,
	}
	if err := a.initialize(); err != nil {
		return nil, err
	}

	if options.InitialHeap > 0 {
		if _, err := a.extendHeap(options.InitialHeap); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// initialize commits the bins array, the prologue block and the
// epilogue sentinel — the fixed skeleton every other operation assumes
// is already in place (spec.md §6).
func (a *Allocator) initialize() error {
	afterBins := int64(NumBins * 4)
	prologueHeaderAddr := alignUp(afterBins+4) - 4 // payload lands 8-aligned.
	skeleton := prologueHeaderAddr + 8 + 4         // + prologue header/footer + epilogue header.

	if _, err := a.mem.Sbrk(skeleton); err != nil {
		return &OutOfMemoryError{Err: err}
	}

	a.binsBase = 0
	a.prologuePtr = Ptr(prologueHeaderAddr + 4)

	prologueH := packHeader(MinSize, true, true, false)
	a.mem.WriteUint32(prologueHeaderAddr, uint32(prologueH))
	a.mem.WriteUint32(a.footerAddr(a.prologuePtr, MinSize), uint32(prologueH))

	epilogueAddr := prologueHeaderAddr + 8
	epilogueH := packHeader(0, true, true, true) // prologue is alloc, size MinSize.
	a.mem.WriteUint32(epilogueAddr, uint32(epilogueH))
	return nil
}

// inHeap reports whether p could be a live payload pointer: inside the
// region between the first real block and the epilogue, 8-byte aligned.
// Release and Resize use it to silently ignore invalid pointers (spec.md
// §7 #2) rather than corrupt the heap chasing one.
func (a *Allocator) inHeap(p Ptr) bool {
	if p <= Null || int64(p)%8 != 0 {
		return false
	}
	heapStart := a.prologuePtr + MinSize
	epilogueAddr := a.mem.High() - 4
	return int64(p) >= int64(heapStart) && int64(p) < epilogueAddr
}

// extendHeap grows the arena by at least nbytes, formats the newly
// committed region as one free block, coalesces it with whatever was
// free just before the old epilogue, and returns the payload pointer of
// the resulting (Index-registered) free block. Grounded on
// lldb/falloc.go's extend, which likewise grows the backing store by a
// rounded chunk and immediately folds the new space into the free list.
func (a *Allocator) extendHeap(nbytes int64) (Ptr, error) {
	nbytes = alignUp(nbytes)
	if nbytes < MinSize {
		nbytes = MinSize
	}

	epilogueAddr := a.mem.High() - 4
	oldEpilogue := header(a.mem.ReadUint32(epilogueAddr))

	if _, err := a.mem.Sbrk(nbytes); err != nil {
		return Null, &OutOfMemoryError{Err: err}
	}

	freeSize := uint32(nbytes) // old epilogue becomes the header; the new epilogue takes the last 4 bytes.
	freePtr := Ptr(epilogueAddr + 4)
	freeH := packHeader(freeSize, false, oldEpilogue.isPrevAlloc(), oldEpilogue.isPrevSmall())
	a.writeBoundaryTag(freePtr, freeH)

	newEpilogueAddr := epilogueAddr + int64(freeSize)
	newEpilogueH := packHeader(0, true, false, freeSize == MinSize)
	a.mem.WriteUint32(newEpilogueAddr, uint32(newEpilogueH))

	return a.coalesce(freePtr), nil
}

// requestSize converts a caller's byte count into the 8-byte-aligned
// block size that must host it: the header plus n bytes of payload,
// never less than MinSize (spec.md §4.7).
func requestSize(n int) (uint32, bool) {
	if n <= 0 || n > maxRequest {
		return 0, false
	}
	size := alignUp(int64(n) + 4)
	if size < MinSize {
		size = MinSize
	}
	return uint32(size), true
}

// Allocate returns a payload pointer to a free block of at least n
// bytes, or Null if n is non-positive, too large to represent, or the
// heap cannot grow enough to satisfy it (spec.md §4.7). The returned
// region's contents are unspecified (not zeroed); use CallocZeroed for
// zeroed memory.
func (a *Allocator) Allocate(n int) Ptr {
	reqSize, ok := requestSize(n)
	if !ok {
		return Null
	}

	p := a.findFit(reqSize)
	if p == Null {
		grow := mathutil.MaxInt64(int64(reqSize), a.options.ChunkSize)
		extended, err := a.extendHeap(grow)
		if err != nil {
			return Null
		}
		p = extended
	}

	a.place(p, reqSize)
	a.checkInvariant()
	return p
}

// Release returns the block at p to the Free Index, coalescing it with
// any free physical neighbors. p == Null or any pointer not currently
// allocated within this heap is silently ignored (spec.md §4.8, §7 #2).
func (a *Allocator) Release(p Ptr) {
	if p == Null || !a.inHeap(p) {
		return
	}
	h := a.readHeader(p)
	if !h.isAlloc() {
		return
	}

	freeH := packHeader(h.size(), false, h.isPrevAlloc(), h.isPrevSmall())
	a.writeBoundaryTag(p, freeH)
	a.coalesce(p)
	a.checkInvariant()
}

// Resize changes the usable size of the block at p to n bytes, copying
// its content as needed, and returns the (possibly different) payload
// pointer. Resize(p, 0) is equivalent to Release(p) followed by
// returning Null. Resize(Null, n) is equivalent to Allocate(n). If
// growth fails, the original block at p is left completely untouched
// and Null is returned (spec.md §4.7, §8 open question (c)).
func (a *Allocator) Resize(p Ptr, n int) Ptr {
	if n == 0 {
		a.Release(p)
		return Null
	}
	if p == Null {
		return a.Allocate(n)
	}
	if !a.inHeap(p) {
		return Null
	}

	reqSize, ok := requestSize(n)
	if !ok {
		return Null
	}

	h := a.readHeader(p)
	curSize := h.size()
	if reqSize <= curSize {
		return p
	}

	if grown := a.tryGrowInPlace(p, h, reqSize); grown {
		a.checkInvariant()
		return p
	}

	newP := a.Allocate(n)
	if newP == Null {
		return Null // original block at p is untouched.
	}
	src := a.mem.Bytes(int64(p), int64(curSize-4))
	dst := a.mem.Bytes(int64(newP), int64(curSize-4))
	copy(dst, src)
	a.Release(p)
	return newP
}

// tryGrowInPlace attempts to satisfy a growing Resize by absorbing p's
// free physical successor, splitting off a residual free block if the
// combined space leaves enough over (spec.md §4.7's in-place growth
// path, the same split-or-consume choice place makes for a fresh
// allocation).
func (a *Allocator) tryGrowInPlace(p Ptr, h header, reqSize uint32) bool {
	curSize := h.size()
	next := p + Ptr(curSize)
	nextH := a.readHeader(next)
	if nextH.isAlloc() {
		return false
	}

	nextSize := nextH.size()
	combined := curSize + nextSize
	if combined < reqSize {
		return false
	}
	a.indexRemove(next, nextSize)

	remainder := combined - reqSize
	if remainder >= MinSize {
		a.writeHeader(p, packHeader(reqSize, true, h.isPrevAlloc(), h.isPrevSmall()))
		residual := p + Ptr(reqSize)
		a.writeBoundaryTag(residual, packHeader(remainder, false, true, reqSize == MinSize))
		succ := residual + Ptr(remainder)
		a.setNextPrevFlags(succ, false, remainder == MinSize)
		a.indexInsert(residual, remainder)
		return true
	}

	a.writeHeader(p, packHeader(combined, true, h.isPrevAlloc(), h.isPrevSmall()))
	succ := p + Ptr(combined)
	a.setNextPrevFlags(succ, true, combined == MinSize)
	return true
}

// CallocZeroed returns a zeroed block sized for k elements of n bytes
// each, or Null on overflow or allocation failure (spec.md §7 #4).
func (a *Allocator) CallocZeroed(k, n int) Ptr {
	if k < 0 || n < 0 {
		return Null
	}
	total := k * n
	if k != 0 && total/k != n {
		return Null // overflow.
	}

	p := a.Allocate(total)
	if p == Null {
		return Null
	}
	clear(a.mem.Bytes(int64(p), int64(total)))
	return p
}

// Bytes returns the n-byte payload slice at p, sharing the arena's
// backing array (heap.Arena.Bytes' no-copy contract). Callers must not
// retain it past the next mutating call, since Resize can move content.
func (a *Allocator) Bytes(p Ptr, n int) []byte {
	return a.mem.Bytes(int64(p), int64(n))
}

// HeapSize returns the number of bytes currently committed to the
// underlying arena. Since the heap only ever grows, this also doubles
// as the allocator's lifetime high-water mark (cmd/tracedriver uses it
// to report peak utilization).
func (a *Allocator) HeapSize() int64 { return a.mem.High() }

// CheckPointer reports an *InvalidPointerError if p is not currently a
// live, allocated block in this heap, or nil if it is. It is a debug
// helper (spec.md §7 #2) — Release and Resize themselves never return
// this error, they silently ignore a bad pointer instead.
func (a *Allocator) CheckPointer(p Ptr) error {
	if !a.inHeap(p) {
		return &InvalidPointerError{P: p}
	}
	if !a.readHeader(p).isAlloc() {
		return &InvalidPointerError{P: p}
	}
	return nil
}

// checkInvariant runs Verify and panics on the first violation found,
// when Options.Checked is set. It is meant for tests and fuzzing, never
// production use — every call becomes O(heap size).
func (a *Allocator) checkInvariant() {
	if !a.options.Checked {
		return
	}
	if err := a.Verify(nil); err != nil {
		panic(fmt.Sprintf("malloc: invariant violated: %v", err))
	}
}
