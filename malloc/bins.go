// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package malloc

// Size-class bins: NumSizeClasses doubly (or, for MinSize, singly)
// linked lists of free blocks all of one exact size, plus the list-head
// array itself persisted in the first NumBins*4 bytes of the heap
// (spec.md §6's "persisted state layout"), mirroring how lldb's FLT
// slots persist their head through the backing Filer.

// binHead reads bin i's list head (or, for i == treeBin, the BST root).
func (a *Allocator) binHead(i int) Ptr {
	return Ptr(a.mem.ReadUint32(a.binsBase + int64(4*i)))
}

func (a *Allocator) setBinHead(i int, p Ptr) {
	a.mem.WriteUint32(a.binsBase+int64(4*i), uint32(p))
}

// binInsert prepends p, a free block of size (size <= Threshold), to its
// size-class list. O(1).
func (a *Allocator) binInsert(p Ptr, size uint32) {
	i := sizeClassIndex(size)
	head := a.binHead(i)
	a.writeSucc(p, head)
	if size > MinSize {
		a.writePred(p, Null)
		if head != Null {
			a.writePred(head, p)
		}
	}
	a.setBinHead(i, p)
}

// binRemove splices p, a free block of size, out of its size-class list.
// O(1) except for the MinSize class, whose blocks carry no predecessor
// field and so must be found by a linear walk from the head (spec.md
// §4.3, open question (b)).
func (a *Allocator) binRemove(p Ptr, size uint32) {
	i := sizeClassIndex(size)
	if size == MinSize {
		a.binRemoveSingly(i, p)
		return
	}

	pred := a.readPred(p)
	succ := a.readSucc(p)
	if pred != Null {
		a.writeSucc(pred, succ)
	} else {
		a.setBinHead(i, succ)
	}
	if succ != Null {
		a.writePred(succ, pred)
	}
}

func (a *Allocator) binRemoveSingly(i int, p Ptr) {
	head := a.binHead(i)
	if head == p {
		a.setBinHead(i, a.readSucc(p))
		return
	}

	for cur := head; cur != Null; {
		next := a.readSucc(cur)
		if next == p {
			a.writeSucc(cur, a.readSucc(p))
			return
		}
		cur = next
	}
	panic("malloc: free block not found in its MinSize bin")
}

// binHeadOf returns a free block of exactly size, or Null if none. O(1).
func (a *Allocator) binHeadOf(size uint32) Ptr {
	return a.binHead(sizeClassIndex(size))
}
