// Copyright 2024 The Smalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package smalloc

import (
	"errors"
	"unsafe"
)

// fakeProvider is an in-process PageProvider backed by the Go heap
// rather than real mmap, used by the core's own tests so they don't
// need a real OS mapping. It keeps every outstanding page's backing
// array alive via the live map: node only ever stores a data page's
// address as a plain uintptr (never a typed pointer), which the
// garbage collector cannot see as a reference.
type fakeProvider struct {
	live    map[uintptr][]byte
	allocs  int
	frees   int
	maxLive int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{live: make(map[uintptr][]byte)}
}

func (f *fakeProvider) AllocPage() (Page, error) {
	buf := make([]byte, PageSize+pageMask)
	base := uintptr(unsafe.Pointer(&buf[0]))
	aligned := alignUp(base, PageSize)
	off := aligned - base
	page := buf[off : off+PageSize]

	f.live[aligned] = buf
	f.allocs++
	if len(f.live) > f.maxLive {
		f.maxLive = len(f.live)
	}
	return Page(page), nil
}

func (f *fakeProvider) FreePage(p Page) error {
	if len(p) == 0 {
		return nil
	}

	addr := uintptr(unsafe.Pointer(&p[0]))
	if _, ok := f.live[addr]; !ok {
		panic("fakeProvider: freeing a page it did not allocate, or a double free")
	}
	delete(f.live, addr)
	f.frees++
	return nil
}

var _ PageProvider = (*fakeProvider)(nil)

// failingAfterNProvider wraps a fakeProvider and fails every AllocPage
// call once n successful ones have been made; used to exercise Init's
// releases-partial-state-on-failure path.
type failingAfterNProvider struct {
	*fakeProvider
	n int
}

func newFailingAfterNProvider(n int) *failingAfterNProvider {
	return &failingAfterNProvider{fakeProvider: newFakeProvider(), n: n}
}

func (f *failingAfterNProvider) AllocPage() (Page, error) {
	if f.n <= 0 {
		return nil, errOutOfPages
	}
	f.n--
	return f.fakeProvider.AllocPage()
}

var errOutOfPages = errors.New("failingAfterNProvider: out of pages")

var _ PageProvider = (*failingAfterNProvider)(nil)
