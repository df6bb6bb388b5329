// Copyright 2024 The Smalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package smalloc

import (
	"testing"
	"unsafe"
)

func newTestNode(t *testing.T, pa PageProvider, bsize uint16) (*node, Page) {
	t.Helper()

	metaPage, err := pa.AllocPage()
	if err != nil {
		t.Fatal(err)
	}
	dataPage, err := pa.AllocPage()
	if err != nil {
		t.Fatal(err)
	}

	node := (*node)(unsafe.Pointer(&metaPage[0]))
	initNode(node, dataPage, bsize, 7)
	return node, dataPage
}

func TestNodeInitState(t *testing.T) {
	pa := newFakeProvider()
	node, page := newTestNode(t, pa, 1)

	if node.isFull() {
		t.Fatal("freshly initialized node reports full")
	}
	if got, want := node.base(), uintptr(unsafe.Pointer(&page[0])); got != want {
		t.Fatalf("base = %#x, want %#x", got, want)
	}
	if node.offset() != 0 {
		t.Fatalf("offset = %v, want 0", node.offset())
	}
	if node.idx != 7 {
		t.Fatalf("idx = %v, want 7", node.idx)
	}
	if node.bsize != MinAlignment {
		t.Fatalf("bsize = %v, want %v", node.bsize, MinAlignment)
	}
}

func TestNodeAllocFillsAndFulls(t *testing.T) {
	pa := newFakeProvider()
	node, page := newTestNode(t, pa, MinAlignment)

	n := PageSize / MinAlignment
	seen := map[uintptr]bool{}
	for i := 0; i < n; i++ {
		ptr, ok := node.alloc()
		if !ok {
			t.Fatalf("alloc %v failed before node reported full", i)
		}
		addr := uintptr(ptr)
		if addr < uintptr(unsafe.Pointer(&page[0])) || addr >= uintptr(unsafe.Pointer(&page[0]))+PageSize {
			t.Fatalf("alloc %v returned out-of-page pointer", i)
		}
		if seen[addr] {
			t.Fatalf("alloc %v returned a duplicate block", i)
		}
		seen[addr] = true
	}

	if !node.isFull() {
		t.Fatal("node should report full after exhausting its blocks")
	}
	if _, ok := node.alloc(); ok {
		t.Fatal("alloc from a full node should fail")
	}
}

func TestNodeAllocSameBlockAfterFree(t *testing.T) {
	pa := newFakeProvider()
	node, _ := newTestNode(t, pa, MinAlignment)

	p1, ok := node.alloc()
	if !ok {
		t.Fatal("alloc failed")
	}
	if err := node.free(p1); err != nil {
		t.Fatal(err)
	}
	p2, ok := node.alloc()
	if !ok {
		t.Fatal("alloc failed")
	}
	if p1 != p2 {
		t.Fatalf("expected reuse of freed block, got %p want %p", p2, p1)
	}
}

func TestNodeFreeFromFullRefulls(t *testing.T) {
	pa := newFakeProvider()
	node, _ := newTestNode(t, pa, MinAlignment)

	n := PageSize / MinAlignment
	ptrs := make([]unsafe.Pointer, 0, n)
	for i := 0; i < n; i++ {
		p, ok := node.alloc()
		if !ok {
			t.Fatalf("alloc %v failed", i)
		}
		ptrs = append(ptrs, p)
	}
	if !node.isFull() {
		t.Fatal("node should be full")
	}

	// Free exactly one block from a full node, then immediately
	// reallocate it: the node must become full again, not adopt a
	// corrupted unaligned offset.
	if err := node.free(ptrs[0]); err != nil {
		t.Fatal(err)
	}
	got, ok := node.alloc()
	if !ok {
		t.Fatal("alloc after single free-from-full should succeed")
	}
	if got != ptrs[0] {
		t.Fatalf("got %p, want %p", got, ptrs[0])
	}
	if !node.isFull() {
		t.Fatal("node should report full again after reclaiming its only free block")
	}
}

func TestNodeFreeNotMine(t *testing.T) {
	pa := newFakeProvider()
	node, _ := newTestNode(t, pa, MinAlignment)
	_, otherPage := newTestNode(t, pa, MinAlignment)

	foreign := unsafe.Pointer(&otherPage[0])
	if err := node.free(foreign); err != errNotMine {
		t.Fatalf("err = %v, want errNotMine", err)
	}
}

func TestNodeFreeMisalignedPanics(t *testing.T) {
	pa := newFakeProvider()
	node, page := newTestNode(t, pa, MinAlignment*2)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on misaligned free")
		}
	}()
	misaligned := unsafe.Pointer(uintptr(unsafe.Pointer(&page[0])) + 1)
	node.free(misaligned)
}
