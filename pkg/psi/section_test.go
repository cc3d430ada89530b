/*
NAME
  section_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package psi

import "testing"

func TestPSIBufferCapacityBounded(t *testing.T) {
	b, err := NewPSIBuffer(0x100, 10)
	if err != nil {
		t.Fatalf("NewPSIBuffer: %v", err)
	}
	if b.Cap() > MaxSectionSize {
		t.Errorf("Cap() = %d, want <= %d", b.Cap(), MaxSectionSize)
	}
	if b.Cap() != 13 {
		t.Errorf("Cap() = %d, want 13", b.Cap())
	}
}

func TestPSIBufferRejectsOversizedSectionLength(t *testing.T) {
	_, err := NewPSIBuffer(0x100, 4094)
	if err == nil {
		t.Error("expected error for section_length pushing capacity past MaxSectionSize")
	}
}

func TestPSIBufferAppendOverflow(t *testing.T) {
	b, err := NewPSIBuffer(0x100, 4)
	if err != nil {
		t.Fatalf("NewPSIBuffer: %v", err)
	}
	if err := b.Append(make([]byte, 7)); err != nil {
		t.Fatalf("Append within capacity: %v", err)
	}
	if !b.Full() {
		t.Error("expected buffer to be Full after reaching capacity")
	}
	if err := b.Append([]byte{0x00}); err != ErrSectionOverflow {
		t.Errorf("Append past capacity = %v, want ErrSectionOverflow", err)
	}
}

func TestPESBufferGrows(t *testing.T) {
	b := NewPESBuffer(0x101, 4)
	if err := b.Append(make([]byte, 100)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if b.Size() != 100 {
		t.Errorf("Size() = %d, want 100", b.Size())
	}
}

func TestBufferResetIsIdempotent(t *testing.T) {
	b, _ := NewPSIBuffer(0x100, 4)
	b.Append(make([]byte, 7))
	b.Reset()
	if b.Size() != 0 {
		t.Errorf("Size() after Reset = %d, want 0", b.Size())
	}
	b.Reset()
	if b.Size() != 0 {
		t.Error("Reset should be idempotent")
	}
}
