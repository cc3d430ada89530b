/*
NAME
  header.go - PSI common section header.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package psi

import "github.com/pkg/errors"

// ErrShortPayload is returned when a section is shorter than the minimal
// common-header prefix.
var ErrShortPayload = errors.New("psi: short payload")

// CommonHeaderLen is the length, in bytes, of the fixed common-header
// prefix: table_id(8) + flags/section_length(16) + identifier(16) +
// reserved/version/current_next(8) + section_number(8) +
// last_section_number(8).
const CommonHeaderLen = 8

// CommonHeader is the header embedded by every PSI table, per spec.md §3.
type CommonHeader struct {
	TableID             byte
	SectionSyntaxInd    bool
	SectionLength       uint16
	Identifier          uint16
	VersionNumber       byte
	CurrentNextInd      bool
	SectionNumber       byte
	LastSectionNumber   byte

	// RemainingPackets estimates how many further TS packets this section
	// still spans, derived from SectionLength and how much of the section
	// has already been seen. It is not part of the wire format;
	// ParseCommonHeader leaves it 0 and nothing in this module sets it.
	RemainingPackets int
}

// ParseCommonHeader parses the 8-byte common header at the start of b.
// section_syntax_indicator != 1, section_length > 4093, or table_id > 0xBF
// are warnings (the header is still returned) rather than hard errors, per
// spec.md §4.2.
func ParseCommonHeader(b []byte) (CommonHeader, []string, error) {
	var h CommonHeader
	if len(b) < CommonHeaderLen {
		return h, nil, ErrShortPayload
	}

	h.TableID = b[0]
	h.SectionSyntaxInd = b[1]&0x80 != 0
	h.SectionLength = (uint16(b[1]&0x0f) << 8) | uint16(b[2])
	h.Identifier = uint16(b[3])<<8 | uint16(b[4])
	h.VersionNumber = (b[5] >> 1) & 0x1f
	h.CurrentNextInd = b[5]&0x01 != 0
	h.SectionNumber = b[6]
	h.LastSectionNumber = b[7]

	var warnings []string
	if !h.SectionSyntaxInd {
		warnings = append(warnings, "section_syntax_indicator != 1")
	}
	if h.SectionLength > 4093 {
		warnings = append(warnings, "section_length > 4093")
	}
	if h.TableID > 0xBF {
		warnings = append(warnings, "table_id > 0xBF")
	}
	return h, warnings, nil
}

// Body returns the section bytes following the common header, up to but
// excluding the trailing 4-byte CRC, given the full section (3-byte
// preamble + SectionLength bytes).
func (h CommonHeader) Body(section []byte) []byte {
	// section[0] = table_id, section[1:3] encode flags+section_length; the
	// syntax section (identifier..CRC) is SectionLength bytes starting at
	// offset 3. The body proper (after identifier/version/section fields,
	// before CRC) starts at CommonHeaderLen and ends 4 bytes before the end
	// of the section.
	end := 3 + int(h.SectionLength)
	if end > len(section) {
		end = len(section)
	}
	if end-4 < CommonHeaderLen || end-4 > len(section) {
		return nil
	}
	return section[CommonHeaderLen : end-4]
}
