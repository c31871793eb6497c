// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

import (
	"testing"
)

func TestSbrkGrows(t *testing.T) {
	a := New(1024)
	if g, e := a.Low(), int64(0); g != e {
		t.Fatal(g, e)
	}
	if g, e := a.High(), int64(0); g != e {
		t.Fatal(g, e)
	}

	old, err := a.Sbrk(64)
	if err != nil {
		t.Fatal(err)
	}
	if g, e := old, int64(0); g != e {
		t.Fatal(g, e)
	}
	if g, e := a.High(), int64(64); g != e {
		t.Fatal(g, e)
	}

	old, err = a.Sbrk(32)
	if err != nil {
		t.Fatal(err)
	}
	if g, e := old, int64(64); g != e {
		t.Fatal(g, e)
	}
	if g, e := a.High(), int64(96); g != e {
		t.Fatal(g, e)
	}
}

func TestSbrkZeroed(t *testing.T) {
	a := New(1024)
	if _, err := a.Sbrk(16); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 16)
	a.ReadAt(buf, 0)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("byte %d not zeroed: %#x", i, v)
		}
	}
}

func TestSbrkOutOfMemory(t *testing.T) {
	a := New(16)
	if _, err := a.Sbrk(16); err != nil {
		t.Fatal(err)
	}

	before := a.High()
	_, err := a.Sbrk(1)
	if err == nil {
		t.Fatal("expected out of memory error")
	}
	if _, ok := err.(*OutOfMemory); !ok {
		t.Fatalf("wrong error type: %T", err)
	}
	if g, e := a.High(), before; g != e {
		t.Fatal("Sbrk failure mutated heap state", g, e)
	}
}

func TestReadWriteRoundtrip(t *testing.T) {
	a := New(1024)
	if _, err := a.Sbrk(64); err != nil {
		t.Fatal(err)
	}

	a.WriteUint32(4, 0xdeadbeef)
	if g, e := a.ReadUint32(4), uint32(0xdeadbeef); g != e {
		t.Fatalf("%#x != %#x", g, e)
	}

	a.WriteInt64(16, -12345)
	if g, e := a.ReadInt64(16), int64(-12345); g != e {
		t.Fatal(g, e)
	}

	b := a.Bytes(8, 4)
	b[0], b[1], b[2], b[3] = 1, 2, 3, 4
	var check [4]byte
	a.ReadAt(check[:], 8)
	if check != [4]byte{1, 2, 3, 4} {
		t.Fatal(check)
	}
}

func TestBytesSharesBackingArray(t *testing.T) {
	a := New(1024)
	if _, err := a.Sbrk(64); err != nil {
		t.Fatal(err)
	}

	before := a.Bytes(0, 64)
	if _, err := a.Sbrk(64); err != nil {
		t.Fatal(err)
	}
	a.WriteUint32(0, 42)
	if g, e := before[0], byte(42); g != e {
		t.Fatal("Sbrk invalidated a previously returned slice", g, e)
	}
}

func TestOutOfRangeAccessPanics(t *testing.T) {
	a := New(1024)
	if _, err := a.Sbrk(8); err != nil {
		t.Fatal(err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on out of range read")
		}
	}()
	a.ReadUint32(8)
}
