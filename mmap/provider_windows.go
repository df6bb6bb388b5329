// Copyright 2024 The Smalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package mmap

import (
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/00xc/smalloc"
)

// AllocPage requests one fresh, page-aligned VirtualAlloc region.
func (m *MmapProvider) AllocPage() (smalloc.Page, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(smalloc.PageSize), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}

	if addr&uintptr(smalloc.PageSize-1) != 0 {
		windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
		return nil, errUnaligned
	}

	m.regs[addr] = struct{}{}
	return smalloc.Page(unsafe.Slice((*byte)(unsafe.Pointer(addr)), smalloc.PageSize)), nil
}

// FreePage releases a page previously returned by AllocPage.
func (m *MmapProvider) FreePage(p smalloc.Page) error {
	if len(p) == 0 {
		return nil
	}

	addr := uintptr(unsafe.Pointer(&p[0]))
	if _, ok := m.regs[addr]; !ok {
		panic(errForeignPage)
	}
	delete(m.regs, addr)
	return windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
}

func (m *MmapProvider) unmapAddr(addr uintptr) error {
	return windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
}
