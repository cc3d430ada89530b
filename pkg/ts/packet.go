/*
NAME
  packet.go - MPEG-2 TS packet header.

DESCRIPTION
  Generalises container/mts/mpegts.go's Packet struct (originally an
  encoder's view of a TS packet) into a decoder's view: parsing the fixed
  four-byte header of an already-size-validated TS packet and locating its
  payload, honouring the adaptation_field_control cases per spec.md §4.1.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package ts provides MPEG-2 Transport Stream packet-level demultiplexing:
// header parsing, continuity checking, and dispatch into the PSI/PES/
// DSM-CC reassembly paths.
package ts

import "github.com/pkg/errors"

// SyncByte starts every TS packet.
const SyncByte = 0x47

// Supported packet sizes (payload + optional error-correction trailer).
const (
	PacketSize188 = 188
	PacketSize204 = 204
	PacketSize208 = 208
)

// HeaderSize is the length of the fixed TS packet header.
const HeaderSize = 4

// Adaptation field control values (octet 3, bits 4-5).
const (
	AFCReservedDiscard = 0x0
	AFCPayloadOnly     = 0x1
	AFCAdaptationOnly  = 0x2
	AFCBoth            = 0x3
)

// ErrMalformedPacket is returned when a packet fails the sync-byte check or
// declares an adaptation_field_length that runs past the packet end.
var ErrMalformedPacket = errors.New("ts: malformed packet")

// Header is the parsed fixed header of a TS packet.
type Header struct {
	TEI      bool   // transport_error_indicator
	PUSI     bool   // payload_unit_start_indicator
	Priority bool   // transport_priority
	PID      uint16 // 13-bit packet identifier
	Scramble byte   // 2-bit transport_scrambling_control
	AFC      byte   // 2-bit adaptation_field_control
	CC       byte   // 4-bit continuity_counter
}

// ParseHeader parses the fixed 4-byte header from a packet already
// validated to be packet_size bytes and starting with SyncByte; failing
// that precondition is reported as ErrMalformedPacket.
func ParseHeader(pkt []byte) (Header, error) {
	if len(pkt) < HeaderSize || pkt[0] != SyncByte {
		return Header{}, ErrMalformedPacket
	}
	var h Header
	h.TEI = pkt[1]&0x80 != 0
	h.PUSI = pkt[1]&0x40 != 0
	h.Priority = pkt[1]&0x20 != 0
	h.PID = uint16(pkt[1]&0x1f)<<8 | uint16(pkt[2])
	h.Scramble = (pkt[3] >> 6) & 0x3
	h.AFC = (pkt[3] >> 4) & 0x3
	h.CC = pkt[3] & 0xf
	return h, nil
}

// Payload returns the payload bytes of pkt (the bytes after the header and
// any adaptation field), per the adaptation_field_control rules in
// spec.md §4.1:
//
//   - 00 (reserved/discard) and 10 (adaptation only): no payload, ok=false.
//   - 01 (payload only): payload begins right after the 4-byte header.
//   - 11 (both): the first payload byte is adaptation_field_length; the
//     payload begins that many bytes later.
func Payload(pkt []byte, h Header) (payload []byte, ok bool, err error) {
	switch h.AFC {
	case AFCReservedDiscard, AFCAdaptationOnly:
		return nil, false, nil
	case AFCPayloadOnly:
		if len(pkt) < HeaderSize {
			return nil, false, ErrMalformedPacket
		}
		return pkt[HeaderSize:], true, nil
	case AFCBoth:
		if len(pkt) <= HeaderSize {
			return nil, false, ErrMalformedPacket
		}
		afl := int(pkt[HeaderSize])
		start := HeaderSize + 1 + afl
		if start > len(pkt) {
			return nil, false, ErrMalformedPacket
		}
		return pkt[start:], true, nil
	default:
		return nil, false, ErrMalformedPacket
	}
}

// DetectPacketSize scans d for the packet size (188, 204, or 208) by
// checking that five consecutive candidate boundaries, each packet_size
// bytes apart, all start with SyncByte, per spec.md §6.
func DetectPacketSize(d []byte) (int, error) {
	candidates := []int{PacketSize188, PacketSize204, PacketSize208}
	const boundaries = 5
	for _, size := range candidates {
		if len(d) < size*boundaries {
			continue
		}
		ok := true
		for i := 0; i < boundaries; i++ {
			if d[i*size] != SyncByte {
				ok = false
				break
			}
		}
		if ok {
			return size, nil
		}
	}
	return 0, errors.New("ts: could not detect packet size")
}
