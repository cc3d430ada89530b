/*
NAME
  header.go - PES optional header decode.

DESCRIPTION
  Decodes the variable-length PES optional header spec.md §4.5 requires
  (stream_id, pes_packet_length, PTS/DTS, trick-mode and extension
  flags), grounded on two teacher sources: the field layout and
  gots.ExtractTime/gots.InsertPTS usage of
  container/mts/pes/pes.go's encoder-side Packet, and the decode-side
  walk of original_source/src/tables/pes.c's pes_parse_audio_video_payload
  (which this mirrors field-for-field, including the trick-mode and
  extension sub-field skip order).

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package pes

import (
	"errors"

	"github.com/Comcast/gots/v2"
)

// ErrShortPESHeader is returned when a PES blob is too short to contain a
// startcode/stream_id/pes_packet_length triplet, or (when the optional
// header is present) too short for the fields its own flags declare.
var ErrShortPESHeader = errors.New("pes: packet too short for header")

// Stream ID ranges that carry no optional PES header, per
// pes_identify_stream_id / pes.c's payload parser guard.
const (
	streamIDProgramStreamMap       = 0xBC
	streamIDPaddingStream          = 0xBE
	streamIDPrivateStream2         = 0xBF
	streamIDECM                    = 0xF0
	streamIDEMM                    = 0xF1
	streamIDDSMCC                  = 0xF2
	streamIDH222Type1E             = 0xF8
	streamIDProgramStreamDirectory = 0xFF
)

// TrickMode enumerates the dsm_trick_mode_control values, per
// original_source/src/tables/pes.c's TRICK_MODE_* branches.
type TrickMode byte

const (
	TrickModeFastForward TrickMode = iota
	TrickModeSlowMotion
	TrickModeFreezeFrame
	TrickModeFastReverse
	TrickModeSlowReverse
)

// Header is a decoded PES optional header, named after
// container/mts/pes/pes.go's encoder-side Packet for symmetry.
type Header struct {
	StreamID     byte
	Length       uint16 // pes_packet_length; 0 means unbounded (video only).
	SC           byte
	Priority     bool
	DAI          bool
	Copyright    bool
	Original     bool
	PDI          byte // pts_dts_flags: 00 none, 10 PTS only, 11 PTS+DTS.
	ESCRF        bool
	ESRF         bool
	DSMTMF       bool
	ACIF         bool
	CRCF         bool
	EF           bool
	HeaderLength byte

	PTS  uint64
	DTS  uint64
	ESCR uint64
	ESR  uint32

	TrickModeControl TrickMode

	// DataOffset is the index into the original PES blob at which the
	// elementary stream payload begins.
	DataOffset int
}

// HasPTS reports whether the header carries a PTS.
func (h *Header) HasPTS() bool { return h.PDI == gots.PTS_DTS_INDICATOR_ONLY_PTS || h.PDI == gots.PTS_DTS_INDICATOR_BOTH }

// HasDTS reports whether the header carries a DTS.
func (h *Header) HasDTS() bool { return h.PDI == gots.PTS_DTS_INDICATOR_BOTH }

// hasOptionalHeader reports whether streamID's PES packets carry the
// optional header fields at all, per pes_identify_stream_id's exclusion
// list.
func hasOptionalHeader(streamID byte) bool {
	switch streamID {
	case streamIDProgramStreamMap, streamIDPaddingStream, streamIDPrivateStream2,
		streamIDECM, streamIDEMM, streamIDDSMCC, streamIDH222Type1E, streamIDProgramStreamDirectory:
		return false
	default:
		return true
	}
}

// decodeHeader parses data, which must begin at the PES packet's
// packet_start_code_prefix (00 00 01).
func decodeHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < 6 {
		return h, ErrShortPESHeader
	}
	h.StreamID = data[3]
	h.Length = uint16(data[4])<<8 | uint16(data[5])
	h.DataOffset = 6

	if !hasOptionalHeader(h.StreamID) || len(data) < 9 {
		return h, nil
	}

	h.SC = (data[6] >> 4) & 0x03
	h.Priority = data[6]&0x08 != 0
	h.DAI = data[6]&0x04 != 0
	h.Copyright = data[6]&0x02 != 0
	h.Original = data[6]&0x01 != 0

	h.PDI = (data[7] >> 6) & 0x03
	h.ESCRF = data[7]&0x20 != 0
	h.ESRF = data[7]&0x10 != 0
	h.DSMTMF = data[7]&0x08 != 0
	h.ACIF = data[7]&0x04 != 0
	h.CRCF = data[7]&0x02 != 0
	h.EF = data[7]&0x01 != 0

	h.HeaderLength = data[8]
	h.DataOffset = 9 + int(h.HeaderLength)

	off := 9
	end := 9 + int(h.HeaderLength)
	if end > len(data) {
		end = len(data)
	}

	switch h.PDI {
	case gots.PTS_DTS_INDICATOR_ONLY_PTS:
		if off+5 <= end {
			h.PTS = gots.ExtractTime(data[off : off+5])
		}
		off += 5
	case gots.PTS_DTS_INDICATOR_BOTH:
		if off+5 <= end {
			h.PTS = gots.ExtractTime(data[off : off+5])
		}
		off += 5
		if off+5 <= end {
			h.DTS = gots.ExtractTime(data[off : off+5])
		}
		off += 5
	}

	if h.ESCRF && off+6 <= end {
		h.ESCR = extractESCR(data[off : off+6])
		off += 6
	} else if h.ESCRF {
		off += 6
	}

	if h.ESRF && off+3 <= end {
		h.ESR = uint32(data[off])&0x7F<<15 | uint32(data[off+1])<<7 | uint32(data[off+2])>>1
		off += 3
	} else if h.ESRF {
		off += 3
	}

	if h.DSMTMF {
		if off < end {
			h.TrickModeControl = TrickMode((data[off] >> 5) & 0x07)
		}
		off++
	}

	if h.ACIF {
		off++
	}

	if h.CRCF {
		off += 2
	}

	if h.EF {
		off = skipPESExtension(data, off, end)
	}

	return h, nil
}

// extractESCR decodes the 33-bit ESCR base from a 6-byte ESCR field, which
// follows the same marker-bit layout as a PTS/DTS field plus a 9-bit
// extension; the extension is not decoded.
func extractESCR(b []byte) uint64 {
	base := uint64(b[0]&0x38) << 27
	base |= uint64(b[0]&0x03) << 28
	base |= uint64(b[1]) << 20
	base |= uint64(b[2]&0xF8) << 12
	base |= uint64(b[2]&0x03) << 13
	base |= uint64(b[3]) << 5
	base |= uint64(b[4]&0xF8) >> 3
	return base
}

// skipPESExtension walks the pes_extension_field's nested sub-fields,
// per pes.c's pes_parse_audio_video_payload handling of
// pes_private_data_flag / pack_header_field_flag /
// program_packet_sequence_counter_flag / p_std_buffer_flag /
// pes_extension_flag_2, returning the offset after them all.
func skipPESExtension(data []byte, off, end int) int {
	if off >= end {
		return off
	}
	flags := data[off]
	privateDataFlag := flags&0x80 != 0
	packHeaderFieldFlag := flags&0x40 != 0
	sequenceCounterFlag := flags&0x20 != 0
	pSTDBufferFlag := flags&0x10 != 0
	extensionFlag2 := flags&0x01 != 0
	off++

	if privateDataFlag {
		off += 16
	}
	if packHeaderFieldFlag && off < end {
		packFieldLength := int(data[off])
		off += 1 + packFieldLength
	}
	if sequenceCounterFlag {
		off += 2
	}
	if pSTDBufferFlag {
		off += 2
	}
	if extensionFlag2 && off < end {
		extLen := int(data[off] & 0x7F)
		off += 1 + extLen
	}
	return off
}
