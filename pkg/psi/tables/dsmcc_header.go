/*
NAME
  dsmcc_header.go - DSM-CC message header and compatibility descriptor,
  shared by the DII and DSI table parsers.

DESCRIPTION
  Grounded on original_source/src/dsm-cc/dsmcc.{c,h}'s
  dsmcc_parse_message_header and dsmcc_parse_compatibility_descriptors.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package tables

import "github.com/ausocean/demuxfs/pkg/psi"

// dsmccMessageHeaderLen is the fixed-size prefix of a DSM-CC U-N message
// header, before its optional adaptation_length-sized adaptation data.
const dsmccMessageHeaderLen = 12

// protocolDiscriminatorUN and dsmccTypeUN identify a DSM-CC
// User-to-Network message, the only kind DII/DSI sections carry.
const (
	protocolDiscriminatorUN = 0x11
	dsmccTypeUN             = 0x03
)

// DSM-CC message_id values this package dispatches on.
const (
	messageIDDII = 0x1002
	messageIDDSI = 0x1006
)

// dsmccMessageHeader is the common prefix of every DII/DSI section's body,
// following the 8-byte PSI common header.
type dsmccMessageHeader struct {
	ProtocolDiscriminator byte
	DSMCCType             byte
	MessageID             uint16
	TransactionID         uint32
	AdaptationLength      byte
	MessageLength         uint16
}

// parseDSMCCMessageHeader reads a dsmccMessageHeader at off and returns the
// offset immediately following it (and its adaptation data, if any).
func parseDSMCCMessageHeader(body []byte, off int) (dsmccMessageHeader, int, error) {
	var h dsmccMessageHeader
	if off+dsmccMessageHeaderLen > len(body) {
		return h, 0, ErrShortTable
	}
	h.ProtocolDiscriminator = body[off]
	h.DSMCCType = body[off+1]
	h.MessageID = uint16(body[off+2])<<8 | uint16(body[off+3])
	tid, err := psi.Uint32(body, off+4)
	if err != nil {
		return h, 0, ErrShortTable
	}
	h.TransactionID = tid
	h.AdaptationLength = body[off+9]
	h.MessageLength = uint16(body[off+10])<<8 | uint16(body[off+11])

	next := off + dsmccMessageHeaderLen + int(h.AdaptationLength)
	if next > len(body) {
		return h, 0, ErrShortTable
	}
	return h, next, nil
}

// skipCompatibilityDescriptor walks (without materialising) a DSM-CC
// CompatibilityDescriptor() at off and returns the offset immediately
// following it. Object carousel DSI sections always carry an empty one;
// DII sections may carry populated entries, which this package has no use
// for beyond knowing their length (descriptor_type-keyed entries here are
// a StreamEvent/BIOP compatibility negotiation concern with no analogue in
// spec.md's filesystem exposition).
func skipCompatibilityDescriptor(body []byte, off int) (length uint16, next int, err error) {
	if off+2 > len(body) {
		return 0, 0, ErrShortTable
	}
	length = uint16(body[off])<<8 | uint16(body[off+1])
	if length < 2 {
		return length, off + 2 + int(length), nil
	}
	return length, off + 2 + int(length), nil
}
