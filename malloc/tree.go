// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package malloc

// The size-keyed BST of same-size free-block lists (spec.md §4.4). Every
// tree node is itself the head of a doubly linked list of free blocks of
// that exact size; same-size blocks are never tree peers, they chain off
// the node via the succ/pred fields bins.go also uses. Traversal is
// iterative throughout (spec.md §9: "express tree operations iteratively
// ... to avoid stack growth on degenerate trees").

func (a *Allocator) treeRoot() Ptr        { return a.binHead(treeBin) }
func (a *Allocator) setTreeRoot(p Ptr)    { a.setBinHead(treeBin, p) }

// setChildOrRoot rewrites parent's link to oldChild so it instead points
// at newChild; if parent is Null, oldChild was the tree root.
func (a *Allocator) setChildOrRoot(parent, oldChild, newChild Ptr) {
	if parent == Null {
		a.setTreeRoot(newChild)
		return
	}
	if a.readLeft(parent) == oldChild {
		a.writeLeft(parent, newChild)
	} else {
		a.writeRight(parent, newChild)
	}
}

// treeInsert adds p, a free block of size > Threshold, to the BST.
func (a *Allocator) treeInsert(p Ptr, size uint32) {
	root := a.treeRoot()
	if root == Null {
		a.writeLeft(p, Null)
		a.writeRight(p, Null)
		a.writeParent(p, Null)
		a.writeSucc(p, Null)
		a.writePred(p, Null)
		a.setTreeRoot(p)
		return
	}

	cur := root
	for {
		curSize := a.blockSize(cur)
		switch {
		case size == curSize:
			a.spliceAsTreeHead(p, cur)
			return
		case size < curSize:
			left := a.readLeft(cur)
			if left == Null {
				a.attachLeaf(cur, p, true)
				return
			}
			cur = left
		default:
			right := a.readRight(cur)
			if right == Null {
				a.attachLeaf(cur, p, false)
				return
			}
			cur = right
		}
	}
}

func (a *Allocator) attachLeaf(parent, p Ptr, left bool) {
	if left {
		a.writeLeft(parent, p)
	} else {
		a.writeRight(parent, p)
	}
	a.writeParent(p, parent)
	a.writeLeft(p, Null)
	a.writeRight(p, Null)
	a.writeSucc(p, Null)
	a.writePred(p, Null)
}

// spliceAsTreeHead makes p the new tree node for node's size, demoting
// node to the second item of the same-size list (spec.md §4.4 "Insert").
func (a *Allocator) spliceAsTreeHead(p, node Ptr) {
	left := a.readLeft(node)
	right := a.readRight(node)
	parent := a.readParent(node)

	a.writeLeft(p, left)
	a.writeRight(p, right)
	a.writeParent(p, parent)
	if left != Null {
		a.writeParent(left, p)
	}
	if right != Null {
		a.writeParent(right, p)
	}
	a.setChildOrRoot(parent, node, p)

	a.writeLeft(node, Null)
	a.writeRight(node, Null)
	a.writeParent(node, Null)

	a.writePred(p, Null)
	a.writeSucc(p, node)
	a.writePred(node, p)
}

// treeRemove removes p, a free block of size > Threshold, from the BST
// (or from whatever same-size list it chains off of).
func (a *Allocator) treeRemove(p Ptr) {
	if pred := a.readPred(p); pred != Null {
		// Not the list head: splice out of the list, tree untouched.
		succ := a.readSucc(p)
		a.writeSucc(pred, succ)
		if succ != Null {
			a.writePred(succ, pred)
		}
		return
	}

	if succ := a.readSucc(p); succ != Null {
		// p is the head and has a successor: promote it to tree node.
		left := a.readLeft(p)
		right := a.readRight(p)
		parent := a.readParent(p)
		a.writeLeft(succ, left)
		a.writeRight(succ, right)
		a.writeParent(succ, parent)
		if left != Null {
			a.writeParent(left, succ)
		}
		if right != Null {
			a.writeParent(right, succ)
		}
		a.setChildOrRoot(parent, p, succ)
		a.writePred(succ, Null)
		return
	}

	// p is the sole node of its size: standard BST deletion.
	a.treeDeleteNode(p)
}

func (a *Allocator) treeMin(node Ptr) Ptr {
	for {
		left := a.readLeft(node)
		if left == Null {
			return node
		}
		node = left
	}
}

func (a *Allocator) treeDeleteNode(p Ptr) {
	left := a.readLeft(p)
	right := a.readRight(p)
	parent := a.readParent(p)

	switch {
	case left == Null && right == Null:
		a.setChildOrRoot(parent, p, Null)
	case right == Null:
		a.writeParent(left, parent)
		a.setChildOrRoot(parent, p, left)
	case left == Null:
		a.writeParent(right, parent)
		a.setChildOrRoot(parent, p, right)
	default:
		min := a.treeMin(right)
		if min == right {
			a.writeLeft(min, left)
			a.writeParent(left, min)
			a.writeParent(min, parent)
			a.setChildOrRoot(parent, p, min)
			// min.right is already correct: it was right's own right child.
		} else {
			minParent := a.readParent(min)
			minRight := a.readRight(min)
			a.writeLeft(minParent, minRight) // min is always a left child.
			if minRight != Null {
				a.writeParent(minRight, minParent)
			}

			a.writeLeft(min, left)
			a.writeRight(min, right)
			a.writeParent(left, min)
			a.writeParent(right, min)
			a.writeParent(min, parent)
			a.setChildOrRoot(parent, p, min)
		}
	}
}

// treeFindBestFit returns the smallest free block with size >= size, or
// Null if none exists. Ties resolve to the tree node (list head), so the
// most recently inserted same-size block is served first (spec.md §4.4).
func (a *Allocator) treeFindBestFit(size uint32) Ptr {
	var best Ptr
	cur := a.treeRoot()
	for cur != Null {
		curSize := a.blockSize(cur)
		switch {
		case size == curSize:
			return cur
		case size < curSize:
			best = cur
			cur = a.readLeft(cur)
		default:
			cur = a.readRight(cur)
		}
	}
	return best
}
