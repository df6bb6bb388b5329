// Copyright 2024 The Smalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package smalloc implements a small-object memory allocator that
// carves fixed-size blocks out of pages obtained from a caller-supplied
// PageProvider.
//
// The allocator is a value; Allocator.Init and Allocator.Release
// bracket its lifetime. It is not safe for concurrent use: all of its
// methods must be called from a single goroutine with respect to one
// Allocator instance. Distinct instances with independent
// PageProviders may be used concurrently from different goroutines.
//
// Changelog
//
// 2024-01-01 Initial version, ported from the smalloc reference
// implementation (https://github.com/00xc/smalloc).
package smalloc

import (
	"errors"
	"unsafe"
)

const (
	// PageSize is the fixed size, in bytes, of every page returned by a
	// PageProvider. It is also the largest single allocation this
	// allocator will satisfy.
	PageSize = 4096

	// MinAlignment is the smallest block size the allocator uses, and
	// every slab block starts at a multiple of it within its page; the
	// spec calls this A. The pointer returned for a slab allocation sits
	// headerSize bytes past its block's start.
	MinAlignment = 32

	// NumClasses is the number of slabs the allocator maintains, with
	// block sizes MinAlignment, 2*MinAlignment, ..., MinAlignment*2^(NumClasses-1).
	NumClasses = 8

	pageMask = PageSize - 1
	fullFlag = 1
)

var headerSize = int(unsafe.Sizeof(allocHeader{}))

// ErrUnrepresentable is returned when a requested length maps to no
// size class and is not exactly one page.
var ErrUnrepresentable = errors.New("smalloc: size has no representable size class")

// ErrNilProvider is returned by Init when given a nil PageProvider.
var ErrNilProvider = errors.New("smalloc: nil page provider")

// Page is a page-aligned, PageSize-byte region obtained from a
// PageProvider. The allocator never interprets bytes inside a Page
// except through the free-list and block-header conventions
// documented on node and Allocator.
type Page []byte

// PageProvider supplies and reclaims fixed-size, page-aligned memory.
// Implementations need not be safe for concurrent use by multiple
// allocators sharing the same provider value.
//
// FreePage may be a no-op: an allocator whose provider never actually
// reclaims pages simply leaks them on Release, which is legal -
// Release becomes a no-op for that slab's pages.
type PageProvider interface {
	// AllocPage returns a fresh, page-aligned, PageSize-byte region, or
	// an error if none is available.
	AllocPage() (Page, error)

	// FreePage releases a page previously returned by AllocPage. Pages
	// must never be passed to FreePage more than once.
	FreePage(Page) error
}

// allocHeader is prepended to every block handed out by a slab. It
// carries a back-pointer to the owning node so Allocator.Free can
// locate the right slab in O(1) without any external bookkeeping.
// Direct-page allocations carry no header.
type allocHeader struct {
	node *node
}

func alignUp(v, align uintptr) uintptr {
	return (v + align - 1) &^ (align - 1)
}

func pageAlign(addr uintptr) uintptr {
	return addr &^ uintptr(pageMask)
}

func pageFromAddr(addr uintptr) Page {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), PageSize)
}
