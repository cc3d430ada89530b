/*
NAME
  section.go - per-PID reassembly buffer for PSI/PES sections.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package psi

import "github.com/pkg/errors"

// MaxSectionSize bounds a PSI section buffer's capacity: section_length is
// at most 4093 (12-bit field minus the 3 bytes already accounted for by the
// common header fields preceding it), plus the 3 preamble bytes
// (table_id, and the 2 bytes encoding section_syntax_indicator/
// section_length) themselves.
const MaxSectionSize = 4096

// ErrSectionOverflow is returned when an append would exceed a PSI buffer's
// capacity.
var ErrSectionOverflow = errors.New("psi: section buffer overflow")

// Buffer is the per-PID reassembly buffer described in spec.md §3. It is
// used both for PSI sections (bounded by MaxSectionSize) and PES packets
// (effectively unbounded, growing on demand).
type Buffer struct {
	PID      uint16
	data     []byte
	size     int
	capacity int
	lastCC   byte
	hasCC    bool
	isPSI    bool
	// Unbounded is set for a PES buffer whose pes_packet_length was
	// declared as 0 (permitted only for video); such a buffer is flushed on
	// every successive PUSI rather than at a fixed size.
	Unbounded bool
}

// NewPSIBuffer allocates a buffer for a PSI section of the given
// section_length (the value read from the common header), sized to
// section_length+3 as spec.md §3 requires.
func NewPSIBuffer(pid uint16, sectionLength int) (*Buffer, error) {
	cap := sectionLength + 3
	if cap > MaxSectionSize || cap < 0 {
		return nil, errors.Errorf("psi: section_length %d out of range", sectionLength)
	}
	return &Buffer{PID: pid, data: make([]byte, cap), capacity: cap, isPSI: true}, nil
}

// NewPESBuffer allocates a buffer for PES reassembly. cap is a hint; the
// buffer grows past it on demand (PES has no hard size ceiling).
func NewPESBuffer(pid uint16, capHint int) *Buffer {
	if capHint <= 0 {
		capHint = 256
	}
	return &Buffer{PID: pid, data: make([]byte, capHint), capacity: capHint, isPSI: false}
}

// IsPSI reports whether this buffer carries PSI section bytes (as opposed
// to PES bytes).
func (b *Buffer) IsPSI() bool { return b.isPSI }

// Size returns the number of bytes currently held.
func (b *Buffer) Size() int { return b.size }

// Cap returns the buffer's capacity. For PSI buffers this never exceeds
// MaxSectionSize; for PES buffers it is just the current backing-array
// capacity and may grow.
func (b *Buffer) Cap() int { return b.capacity }

// Bytes returns the bytes currently held (size bytes, not capacity).
func (b *Buffer) Bytes() []byte { return b.data[:b.size] }

// Reset empties the buffer without releasing its backing array.
func (b *Buffer) Reset() { b.size = 0 }

// LastCC returns the continuity_counter of the last packet that
// contributed to this buffer, and whether any packet has yet done so.
func (b *Buffer) LastCC() (byte, bool) { return b.lastCC, b.hasCC }

// SetLastCC records the continuity_counter of the packet that just
// contributed to this buffer.
func (b *Buffer) SetLastCC(cc byte) {
	b.lastCC = cc
	b.hasCC = true
}

// Append adds p to the buffer. For a PSI buffer this fails with
// ErrSectionOverflow rather than grow past capacity; for a PES buffer the
// backing array grows as needed.
func (b *Buffer) Append(p []byte) error {
	if b.isPSI && b.size+len(p) > b.capacity {
		return ErrSectionOverflow
	}
	need := b.size + len(p)
	if need > len(b.data) {
		grown := make([]byte, need)
		copy(grown, b.data[:b.size])
		b.data = grown
	}
	copy(b.data[b.size:need], p)
	b.size = need
	if !b.isPSI && need > b.capacity {
		b.capacity = need
	}
	return nil
}

// Full reports whether a PSI buffer has accumulated exactly its declared
// capacity (section_length+3), i.e. it is ready for CRC verification.
func (b *Buffer) Full() bool { return b.isPSI && b.size == b.capacity }
