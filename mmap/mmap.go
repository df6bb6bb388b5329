// Copyright 2024 The Smalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmap provides a smalloc.PageProvider backed by anonymous OS
// page mappings. It is a reference implementation, not part of the
// allocator's core: callers with their own paging policy (a pre-
// reserved arena, a named mapping, a custom mmap policy) should
// implement smalloc.PageProvider directly instead.
package mmap

import (
	"errors"

	"github.com/00xc/smalloc"
)

// errForeignPage is the panic value used when FreePage is handed a
// page this provider did not allocate.
var errForeignPage = errors.New("mmap: freeing a page this provider did not allocate")

// errUnaligned is returned (after undoing the mapping) if the OS ever
// hands back a page that isn't itself page-aligned.
var errUnaligned = errors.New("mmap: returned region is not page-aligned")

// MmapProvider implements smalloc.PageProvider using one
// MAP_ANON|MAP_SHARED region per page. Its zero value is not ready
// for use; construct it with NewMmapProvider.
type MmapProvider struct {
	regs map[uintptr]struct{}
}

// NewMmapProvider returns a ready-to-use MmapProvider.
func NewMmapProvider() *MmapProvider {
	return &MmapProvider{regs: make(map[uintptr]struct{})}
}

// Close unmaps every region this provider has outstanding. It is a
// convenience for test teardown and is not part of PageProvider.
func (m *MmapProvider) Close() error {
	var err error
	for addr := range m.regs {
		if e := m.unmapAddr(addr); e != nil && err == nil {
			err = e
		}
		delete(m.regs, addr)
	}
	return err
}

var _ smalloc.PageProvider = (*MmapProvider)(nil)
