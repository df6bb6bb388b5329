// Copyright 2024 The Smalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package smalloc

import "unsafe"

// Allocator holds one slab per size class plus the PageProvider they
// all share. Its zero value is not usable; call Init first.
//
// Allocator is not safe for concurrent use.
type Allocator struct {
	slabs [NumClasses]slab
	pa    PageProvider

	// Logf, if non-nil, is called with a printf-style trace of every
	// alloc/realloc/free/release, mirroring the teacher's trace-gated
	// fmt.Fprintf instrumentation. It is nil (no-op) by default.
	Logf func(format string, args ...interface{})

	inited bool
}

func (a *Allocator) logf(format string, args ...interface{}) {
	if a.Logf != nil {
		a.Logf(format, args...)
	}
}

// Init constructs the NumClasses slabs backed by pa. On failure of
// any slab it releases every slab already constructed and returns the
// underlying error.
func (a *Allocator) Init(pa PageProvider) (err error) {
	defer func() { a.logf("Init() %v", err) }()

	if pa == nil {
		return ErrNilProvider
	}

	a.pa = pa
	bsize := uint16(MinAlignment)
	built := 0
	for i := 0; i < NumClasses; i++ {
		s, err := newSlab(pa, bsize)
		if err != nil {
			for j := 0; j < built; j++ {
				a.slabs[j].release()
			}
			return err
		}
		a.slabs[i] = *s
		bsize <<= 1
		built++
	}
	a.inited = true
	return nil
}

// Alloc returns a block of at least length bytes, or nil and an error
// if length is zero, exceeds one page, or the provider is exhausted.
func (a *Allocator) Alloc(length int) (r []byte, err error) {
	defer func() { a.logf("Alloc(%#x) %p, %v", length, dataPtr(r), err) }()

	class, direct, ok := classify(length)
	if !ok {
		return nil, ErrUnrepresentable
	}

	if direct {
		page, err := a.pa.AllocPage()
		if err != nil {
			return nil, err
		}
		return page[:length], nil
	}

	ptr, node, err := a.slabs[class].alloc()
	if err != nil {
		return nil, err
	}

	hdr := (*allocHeader)(ptr)
	hdr.node = node
	user := unsafe.Add(ptr, headerSize)

	// Cap the returned slice at the block's full usable size, not just
	// the requested length: Realloc's in-place growth path reslices up
	// to a larger length within the same class, which is only valid if
	// cap reflects the whole block.
	usable := int(node.bsize) - headerSize
	full := unsafe.Slice((*byte)(user), usable)
	return full[:length:usable], nil
}

// Free releases a block previously returned by Alloc or Realloc. It
// is a no-op when p is empty, matching the spec's "absent" input.
func (a *Allocator) Free(p []byte) (err error) {
	defer func() { a.logf("Free(%p) %v", dataPtr(p), err) }()

	if len(p) == 0 {
		return nil
	}

	ptr := unsafe.Pointer(&p[0])
	if pageAlign(uintptr(ptr)) == uintptr(ptr) {
		return a.pa.FreePage(pageFromAddr(uintptr(ptr)))
	}

	hdrPtr := unsafe.Add(ptr, -headerSize)
	hdr := (*allocHeader)(hdrPtr)
	node := hdr.node
	class := classIndexForSize(node.bsize)
	a.slabs[class].free(hdrPtr, node)
	return nil
}

// Realloc changes the size of the block backing p to length bytes.
// If p is empty it behaves as Alloc(length); if length is zero it
// behaves as Free(p) and returns nil. If the new length classifies
// into the very same class (slab index, or direct-page) as p's
// current one, p is returned unchanged (reslice to length). Otherwise
// a new block is allocated, the overlapping prefix is copied, and p is
// freed. On failure p is left intact and nil is returned.
func (a *Allocator) Realloc(p []byte, length int) (r []byte, err error) {
	defer func() {
		a.logf("Realloc(%p, %#x) %p, %v", dataPtr(p), length, dataPtr(r), err)
	}()

	if len(p) == 0 {
		return a.Alloc(length)
	}
	if length == 0 {
		return nil, a.Free(p)
	}

	newClass, newDirect, ok := classify(length)
	if !ok {
		return nil, ErrUnrepresentable
	}

	// Compare by class identity, not raw byte size: a slab class whose
	// block size happens to equal PageSize (the top class) must not be
	// treated as interchangeable with the direct-page path, even though
	// both are PageSize bytes.
	ptr := unsafe.Pointer(&p[0])
	curDirect := pageAlign(uintptr(ptr)) == uintptr(ptr)

	if curDirect && newDirect {
		return p[:length], nil
	}
	if !curDirect && !newDirect {
		hdrPtr := unsafe.Add(ptr, -headerSize)
		hdr := (*allocHeader)(hdrPtr)
		curClass := classIndexForSize(hdr.node.bsize)
		if curClass == newClass {
			return p[:length], nil
		}
	}

	newPtr, err := a.Alloc(length)
	if err != nil {
		return nil, err
	}

	n := len(p)
	if length < n {
		n = length
	}
	copy(newPtr, p[:n])

	if err := a.Free(p); err != nil {
		return nil, err
	}
	return newPtr, nil
}

// UsableSize reports the allocated block size backing p: PageSize for
// a direct-page allocation, or the owning node's block size for a
// slab allocation.
func (a *Allocator) UsableSize(p []byte) int {
	if len(p) == 0 {
		return 0
	}

	ptr := unsafe.Pointer(&p[0])
	if pageAlign(uintptr(ptr)) == uintptr(ptr) {
		return PageSize
	}

	hdrPtr := unsafe.Add(ptr, -headerSize)
	hdr := (*allocHeader)(hdrPtr)
	return int(hdr.node.bsize)
}

// Release returns every page this allocator ever acquired to its
// provider. The allocator must not be used afterward.
func (a *Allocator) Release() {
	defer a.logf("Release()")

	for i := range a.slabs {
		a.slabs[i].release()
	}
	a.inited = false
}

func dataPtr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}
