// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package malloc

import "fmt"

// OutOfMemoryError wraps a failed heap growth attempt (spec.md §7 #1).
// Allocate/Resize/CallocZeroed never return it directly — they signal
// out-of-memory by returning Null — but it is available to callers that
// want to distinguish "heap exhausted" from other New failures.
type OutOfMemoryError struct {
	Err error
}

func (e *OutOfMemoryError) Error() string { return fmt.Sprintf("malloc: %v", e.Err) }
func (e *OutOfMemoryError) Unwrap() error { return e.Err }

// InvalidPointerError reports a pointer that does not currently name a
// live, allocated block (spec.md §7 #2). Release and Resize never return
// it — per spec.md they silently ignore such a pointer — but it backs
// Allocator.CheckPointer, a debug helper tests use to assert a pointer
// is what they expect before exercising it further.
type InvalidPointerError struct {
	P Ptr
}

func (e *InvalidPointerError) Error() string {
	return fmt.Sprintf("malloc: invalid pointer %#x", int64(e.P))
}

// CorruptionError reports a Free Index or boundary-tag invariant
// violation found by Verify (spec.md §7 #3, §8). It is never returned by
// Allocate/Release/Resize in normal operation — only by Verify, which is
// intended for debug builds and tests.
type CorruptionError struct {
	Msg string
	At  Ptr
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("malloc: corrupt heap at %#x: %s", int64(e.At), e.Msg)
}
