// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package heap implements the raw heap provider the malloc core consumes:
// a single contiguous, brk-extensible byte region.
//
// Low and High bound the currently committed region; Sbrk grows it by
// exactly n bytes and returns the old break. The backing array never
// moves, so offsets returned before a Sbrk stay valid after it — there is
// no pointer invalidation to reason about, only address space exhaustion.
package heap

import (
	"fmt"
)

// DefaultCapacity is the virtual address space reserved by New when no
// capacity is requested. It bounds how far Sbrk can grow the heap; it is
// not itself committed (Go zeroes backing arrays lazily via make, but the
// allocation itself is immediate, same as reserving, not committing, real
// address space would be).
const DefaultCapacity = 1 << 26 // 64 MiB

// OutOfMemory is returned by Sbrk when growing the heap by n bytes would
// exceed the arena's capacity. It carries no heap-state change: Sbrk is a
// no-op on this error.
type OutOfMemory struct {
	Requested int64
	Available int64
}

func (e *OutOfMemory) Error() string {
	return fmt.Sprintf("heap: out of memory: requested %d bytes, %d available", e.Requested, e.Available)
}

// Arena is a capacity-bounded, zero-committed byte region with a movable
// break. It is not safe for concurrent use.
type Arena struct {
	mem   []byte
	brk   int64
	limit int64
}

// New returns an empty Arena able to grow up to capacity bytes. A
// capacity <= 0 uses DefaultCapacity.
func New(capacity int64) *Arena {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Arena{mem: make([]byte, 0, capacity), limit: capacity}
}

// Low returns the address of the first byte of the heap. It is always 0:
// offsets are heap-base-relative by construction (spec.md §6).
func (a *Arena) Low() int64 { return 0 }

// High returns the address one past the last committed byte, i.e. the
// current program break.
func (a *Arena) High() int64 { return a.brk }

// Sbrk grows the heap by exactly n (n >= 0) bytes and returns the address
// of the old break (the start of the newly committed region). Newly
// committed bytes read as zero. Failure returns (0, *OutOfMemory) and
// leaves the heap unchanged.
func (a *Arena) Sbrk(n int64) (int64, error) {
	if n < 0 {
		panic("heap: Sbrk with negative size")
	}
	old := a.brk
	if n == 0 {
		return old, nil
	}
	want := old + n
	if want > a.limit {
		return 0, &OutOfMemory{Requested: n, Available: a.limit - old}
	}
	if want > int64(cap(a.mem)) {
		// Defensive: capacity was already reserved by New, but guard
		// against a caller-supplied limit that disagrees with cap(mem).
		grown := make([]byte, want, a.limit)
		copy(grown, a.mem)
		a.mem = grown
	} else {
		a.mem = a.mem[:want]
		for i := old; i < want; i++ {
			a.mem[i] = 0
		}
	}
	a.brk = want
	return old, nil
}

func (a *Arena) checkRange(off, n int64) {
	if off < 0 || n < 0 || off+n > a.brk {
		panic(fmt.Sprintf("heap: access [%d,%d) out of committed range [0,%d)", off, off+n, a.brk))
	}
}

// ReadAt copies len(b) bytes starting at off into b. It panics if the
// range is not entirely within the committed heap; callers (the malloc
// core) are trusted to stay in bounds, the same contract a real process
// has with its own heap.
func (a *Arena) ReadAt(b []byte, off int64) {
	a.checkRange(off, int64(len(b)))
	copy(b, a.mem[off:off+int64(len(b))])
}

// WriteAt copies b into the heap starting at off.
func (a *Arena) WriteAt(b []byte, off int64) {
	a.checkRange(off, int64(len(b)))
	copy(a.mem[off:off+int64(len(b))], b)
}

// Bytes returns a direct sub-slice of the heap's backing array spanning
// [off, off+n). Mutations through it are visible to subsequent ReadAt/
// WriteAt calls and vice versa; it is how the Allocator façade hands
// payload bytes back to callers without a copy.
func (a *Arena) Bytes(off, n int64) []byte {
	a.checkRange(off, n)
	return a.mem[off : off+n : off+n]
}

// ReadUint32 reads a little-endian uint32 at off.
func (a *Arena) ReadUint32(off int64) uint32 {
	a.checkRange(off, 4)
	b := a.mem[off : off+4]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// WriteUint32 writes v as little-endian at off.
func (a *Arena) WriteUint32(off int64, v uint32) {
	a.checkRange(off, 4)
	b := a.mem[off : off+4]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// ReadInt64 reads a little-endian int64 at off.
func (a *Arena) ReadInt64(off int64) int64 {
	a.checkRange(off, 8)
	b := a.mem[off : off+8]
	return int64(uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56)
}

// WriteInt64 writes v as little-endian at off.
func (a *Arena) WriteInt64(off int64, v int64) {
	a.checkRange(off, 8)
	b := a.mem[off : off+8]
	u := uint64(v)
	b[0] = byte(u)
	b[1] = byte(u >> 8)
	b[2] = byte(u >> 16)
	b[3] = byte(u >> 24)
	b[4] = byte(u >> 32)
	b[5] = byte(u >> 40)
	b[6] = byte(u >> 48)
	b[7] = byte(u >> 56)
}
