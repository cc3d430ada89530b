/*
NAME
  bytes.go - big-endian bit/byte extraction helpers.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package psi

import "github.com/pkg/errors"

// ErrShortRead is returned by the Uint* helpers when b is too short to
// contain the requested width.
var ErrShortRead = errors.New("psi: short read")

// Uint8 reads an 8-bit big-endian unsigned integer at offset off.
func Uint8(b []byte, off int) (uint8, error) {
	if off+1 > len(b) {
		return 0, ErrShortRead
	}
	return b[off], nil
}

// Uint16 reads a 16-bit big-endian unsigned integer at offset off.
func Uint16(b []byte, off int) (uint16, error) {
	if off+2 > len(b) {
		return 0, ErrShortRead
	}
	return uint16(b[off])<<8 | uint16(b[off+1]), nil
}

// Uint24 reads a 24-bit big-endian unsigned integer at offset off.
func Uint24(b []byte, off int) (uint32, error) {
	if off+3 > len(b) {
		return 0, ErrShortRead
	}
	return uint32(b[off])<<16 | uint32(b[off+1])<<8 | uint32(b[off+2]), nil
}

// Uint32 reads a 32-bit big-endian unsigned integer at offset off.
func Uint32(b []byte, off int) (uint32, error) {
	if off+4 > len(b) {
		return 0, ErrShortRead
	}
	return uint32(b[off])<<24 | uint32(b[off+1])<<16 | uint32(b[off+2])<<8 | uint32(b[off+3]), nil
}

// Uint40 reads a 40-bit big-endian unsigned integer at offset off.
func Uint40(b []byte, off int) (uint64, error) {
	if off+5 > len(b) {
		return 0, ErrShortRead
	}
	v := uint64(b[off])<<32 | uint64(b[off+1])<<24 | uint64(b[off+2])<<16 |
		uint64(b[off+3])<<8 | uint64(b[off+4])
	return v, nil
}

// Uint64 reads a 64-bit big-endian unsigned integer at offset off.
func Uint64(b []byte, off int) (uint64, error) {
	if off+8 > len(b) {
		return 0, ErrShortRead
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[off+i])
	}
	return v, nil
}
