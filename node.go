// Copyright 2024 The Smalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package smalloc

import (
	"errors"
	"unsafe"
)

// errNotMine is returned by node.free when the pointer does not
// belong to the page this node manages.
var errNotMine = errors.New("smalloc: pointer does not belong to this node")

// node is the per-data-page metadata record. It describes one data
// page as a free list of fixed-size blocks.
//
// pageState packs the data page's base address (page-aligned, so its
// low 12 bits are zero) together with one of two mutually exclusive
// state encodings in those low bits: either the in-page byte offset
// of the next free block, or a "full" sentinel (bit 0 set). Because
// every real offset is a multiple of MinAlignment, its bit 0 is
// always clear, so the two encodings never collide.
type node struct {
	next      *node
	pageState uintptr
	idx       uint32
	bsize     uint16
}

func (n *node) base() uintptr {
	return pageAlign(n.pageState)
}

func (n *node) isFull() bool {
	return n.pageState&pageMask == fullFlag
}

func (n *node) offset() uintptr {
	return n.pageState & pageMask
}

func (n *node) setFull() {
	n.pageState = n.base() | fullFlag
}

func (n *node) setOffset(off uintptr) {
	n.pageState = n.base() | (off & pageMask)
}

// dataPage reconstructs the Page this node manages.
func (n *node) dataPage() Page {
	return pageFromAddr(n.base())
}

// initNode lays out a fresh intrusive free list across page and
// points node at it. bsize is rounded up to MinAlignment; idx is the
// node's ordinal within its slab.
func initNode(node *node, page Page, bsize uint16, idx uint32) {
	bsize = uint16(alignUp(uintptr(bsize), MinAlignment))
	base := uintptr(unsafe.Pointer(&page[0]))

	for off := uintptr(0); off < PageSize; off += uintptr(bsize) {
		link := (*uint16)(unsafe.Pointer(base + off))
		*link = uint16(off) + bsize
	}

	node.next = nil
	node.idx = idx
	node.bsize = bsize
	node.pageState = base // offset 0, not full
}

// alloc removes and returns the head of the node's free list, or
// reports that the node has no free blocks left.
func (n *node) alloc() (unsafe.Pointer, bool) {
	if n.isFull() {
		return nil, false
	}

	o := n.offset()
	ptr := n.base() + o
	link := (*uint16)(unsafe.Pointer(ptr))
	next := *link

	if uintptr(next) >= PageSize {
		n.setFull()
	} else {
		n.setOffset(uintptr(next))
	}
	return unsafe.Pointer(ptr), true
}

// free returns the block at p to the node's free list. It reports
// errNotMine if p's page does not belong to this node; the caller
// treats that as a fatal metadata-corruption error. A misaligned p is
// always an implementation error and panics.
func (n *node) free(p unsafe.Pointer) error {
	ptr := uintptr(p)
	base := n.base()

	if pageAlign(ptr) != base {
		return errNotMine
	}
	if (ptr-base)%uintptr(n.bsize) != 0 {
		panic("smalloc: freed pointer is not block-aligned")
	}

	link := (*uint16)(unsafe.Pointer(ptr))
	if n.isFull() {
		// There is no valid "current offset" to chain to: write an
		// out-of-page sentinel so the next alloc from this slot
		// immediately re-derives the full state instead of adopting
		// an unaligned offset.
		*link = PageSize
	} else {
		*link = uint16(n.offset())
	}
	n.setOffset(ptr - base)
	return nil
}
