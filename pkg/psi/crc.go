/*
NAME
  crc.go - MPEG-2 CRC-32 (polynomial 0x04C11DB7) for PSI section integrity.

DESCRIPTION
  Generalises container/mts/psi/crc.go's hand-rolled, table-driven CRC-32
  from "append a trailer to this table under construction" to "compute or
  verify the CRC of an arbitrary completed section".

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package psi

import (
	"encoding/binary"
	"hash/crc32"
	"math/bits"
)

var crcTable = makeTable(bits.Reverse32(crc32.IEEE))

// makeTable builds a CRC-32 lookup table for the given (MSB-first) poly,
// exactly as container/mts/psi/crc.go does.
func makeTable(poly uint32) *crc32.Table {
	var t crc32.Table
	for i := range t {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return &t
}

func update(crc uint32, tab *crc32.Table, p []byte) uint32 {
	for _, v := range p {
		crc = tab[byte(crc>>24)^v] ^ (crc << 8)
	}
	return crc
}

// Compute returns the MPEG-2 CRC-32 of b.
func Compute(b []byte) uint32 {
	return update(0xffffffff, crcTable, b)
}

// AppendCRC appends the CRC-32 of b to b and returns the result.
func AppendCRC(b []byte) []byte {
	out := make([]byte, len(b)+4)
	copy(out, b)
	binary.BigEndian.PutUint32(out[len(b):], Compute(b))
	return out
}

// Verify reports whether section (including its trailing 4-byte CRC field)
// satisfies CRC32(section) == 0, the MPEG-2 PSI section integrity
// invariant. Sections shorter than 4 bytes are never valid.
func Verify(section []byte) bool {
	if len(section) < 4 {
		return false
	}
	return Compute(section) == 0
}
