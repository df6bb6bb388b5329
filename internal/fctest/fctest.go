// Copyright 2024 The Smalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fctest wraps github.com/cznic/mathutil's full-cycle PRNG
// for use in the core's property tests, the way the teacher's own
// test suite drives test1/test2/test3 with mathutil.NewFC32.
package fctest

import (
	"testing"

	"github.com/cznic/mathutil"
)

// New returns a full-cycle generator over [lo, hi], seeded
// deterministically so a failing test is reproducible. The caller
// typically records rng.Pos() before driving allocations and calls
// rng.Seek back to it to replay the same sequence when verifying.
func New(t *testing.T, lo, hi int) *mathutil.FC32 {
	t.Helper()

	rng, err := mathutil.NewFC32(lo, hi, true)
	if err != nil {
		t.Fatal(err)
	}
	rng.Seed(42)
	return rng
}
