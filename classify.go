// Copyright 2024 The Smalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package smalloc

import "github.com/cznic/mathutil"

// sizeClassIndex returns ceil(log2(v/MinAlignment)), the index i such
// that (A*2^(i-1), A*2^i] contains v. v must be >= 1; every v up to
// MinAlignment maps to 0.
//
// This is the same bit trick the teacher's Malloc/UnsafeMalloc use
// (mathutil.BitLen on a shifted, decremented value) rather than a
// hand-rolled leading-zero-count loop.
func sizeClassIndex(v uintptr) int {
	return mathutil.BitLen64(uint64(v-1) >> log2MinAlignment)
}

const log2MinAlignment = 5 // MinAlignment == 1<<5

// classify routes a requested length to a size-class index, a
// direct-page allocation, or failure. It mirrors §4.3 of the spec:
// H(L) = align_up(L+headerSize, A); if its class is < NumClasses, use
// that slab. Otherwise, if L rounds up to exactly one page, use the
// direct-page path. Anything else fails.
func classify(length int) (class int, direct bool, ok bool) {
	if length <= 0 {
		return 0, false, false
	}

	h := alignUp(uintptr(length)+uintptr(headerSize), MinAlignment)
	if idx := sizeClassIndex(h); idx < NumClasses {
		return idx, false, true
	}

	d := alignUp(uintptr(length), PageSize)
	if d == PageSize {
		return 0, true, true
	}
	return 0, false, false
}

// classSize returns the block size (A*2^idx) of size class idx.
func classSize(idx int) uintptr {
	return uintptr(MinAlignment) << uint(idx)
}

// classIndexForSize returns the slab index whose block size is bsize.
// bsize is always MinAlignment*2^k for some k in [0, NumClasses).
func classIndexForSize(bsize uint16) int {
	return sizeClassIndex(uintptr(bsize))
}
