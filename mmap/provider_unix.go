// Copyright 2024 The Smalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

package mmap

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/00xc/smalloc"
)

// AllocPage requests one fresh, anonymous, page-aligned mapping from
// the kernel.
func (m *MmapProvider) AllocPage() (smalloc.Page, error) {
	b, err := unix.Mmap(-1, 0, smalloc.PageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}

	addr := uintptr(unsafe.Pointer(&b[0]))
	if addr&uintptr(smalloc.PageSize-1) != 0 {
		unix.Munmap(b)
		return nil, errUnaligned
	}

	m.regs[addr] = struct{}{}
	return smalloc.Page(b), nil
}

// FreePage unmaps a page previously returned by AllocPage.
func (m *MmapProvider) FreePage(p smalloc.Page) error {
	if len(p) == 0 {
		return nil
	}

	addr := uintptr(unsafe.Pointer(&p[0]))
	if _, ok := m.regs[addr]; !ok {
		panic(errForeignPage)
	}
	delete(m.regs, addr)
	return unix.Munmap(p)
}

func (m *MmapProvider) unmapAddr(addr uintptr) error {
	b := unsafe.Slice((*byte)(unsafe.Pointer(addr)), smalloc.PageSize)
	return unix.Munmap(b)
}
