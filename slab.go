// Copyright 2024 The Smalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package smalloc

import "unsafe"

var nodeSize = unsafe.Sizeof(node{})

// slab is a chain of Nodes sharing one block size, i.e. one size
// class. lowestFree is a hint to the earliest node in the chain that
// might still have room; it keeps steady-state alloc amortized O(1).
type slab struct {
	head       *node
	lowestFree *node
	pa         PageProvider
}

func newSlab(pa PageProvider, bsize uint16) (*slab, error) {
	metaPage, err := pa.AllocPage()
	if err != nil {
		return nil, err
	}

	dataPage, err := pa.AllocPage()
	if err != nil {
		pa.FreePage(metaPage)
		return nil, err
	}

	node := (*node)(unsafe.Pointer(&metaPage[0]))
	initNode(node, dataPage, bsize, 0)

	return &slab{head: node, lowestFree: node, pa: pa}, nil
}

// nextNode grows the chain with one more node for the same slab,
// sharing node's block size. The node record itself is placed right
// after node within its metadata page if it still fits there,
// otherwise at the start of a freshly acquired metadata page.
func nextNode(pa PageProvider, node *node) (*node, error) {
	mem, err := pa.AllocPage()
	if err != nil {
		return nil, err
	}

	nodeAddr := uintptr(unsafe.Pointer(node))
	nextStart := alignUp(nodeAddr+nodeSize, unsafe.Alignof(node{}))
	nextEnd := nextStart + nodeSize

	var newNode *node
	if pageAlign(nextEnd-1) == pageAlign(nodeAddr) {
		newNode = (*node)(unsafe.Pointer(nextStart))
	} else {
		metaPage, err := pa.AllocPage()
		if err != nil {
			pa.FreePage(mem)
			return nil, err
		}
		newNode = (*node)(unsafe.Pointer(&metaPage[0]))
	}

	initNode(newNode, mem, node.bsize, node.idx+1)
	return newNode, nil
}

// alloc walks the chain starting at lowestFree, growing it on demand,
// until it finds a node with room.
func (s *slab) alloc() (unsafe.Pointer, *node, error) {
	node := s.lowestFree
	for {
		if ptr, ok := node.alloc(); ok {
			s.lowestFree = node
			return ptr, node, nil
		}

		if node.next == nil {
			next, err := nextNode(s.pa, node)
			if err != nil {
				return nil, nil, err
			}
			node.next = next
		}
		node = node.next
	}
}

// free returns the block at p, owned by node, to the slab.
func (s *slab) free(p unsafe.Pointer, node *node) {
	if node.idx < s.lowestFree.idx {
		s.lowestFree = node
	}

	if err := node.free(p); err != nil {
		panic(err)
	}
}

// release returns every page this slab ever acquired to its
// provider, exactly once, and resets the slab to its zero state.
func (s *slab) release() {
	node := s.head
	var lastMetaHead *node

	for node != nil {
		s.pa.FreePage(node.dataPage())

		if pageAlign(uintptr(unsafe.Pointer(node))) == uintptr(unsafe.Pointer(node)) {
			if lastMetaHead != nil {
				s.pa.FreePage(pageFromAddr(uintptr(unsafe.Pointer(lastMetaHead))))
			}
			lastMetaHead = node
		}
		node = node.next
	}
	if lastMetaHead != nil {
		s.pa.FreePage(pageFromAddr(uintptr(unsafe.Pointer(lastMetaHead))))
	}

	s.head = nil
	s.lowestFree = nil
}
