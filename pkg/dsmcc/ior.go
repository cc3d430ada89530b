/*
NAME
  ior.go - IOP::IOR and BIOP profile body decode.

DESCRIPTION
  Implements spec.md §4.6's "IOR whose Profile Body locates the gateway
  module" responsibility, grounded on
  original_source/src/dsm-cc/iop.{c,h} (iop_parse_ior,
  iop_parse_tagged_profiles) and biop.c's biop_parse_profile_body /
  biop_parse_object_location / biop_parse_connbinder. The teacher has no
  DSM-CC code at all (confirmed absent from ausocean-av and the rest of
  the pack), so this package is hand-rolled from the upstream C source,
  expressed in the teacher's Go idiom: explicit structs decoded by a
  standalone parse function, errors returned rather than logged-and-
  ignored, no manual memory management.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package dsmcc implements the DSM-CC object carousel engine of spec.md
// §4.6: IOP::IOR and BIOP message decoding, and the carousel tree
// assembly (including its stepfather staging area for forward
// references) that turns a module's concatenated DDB blocks into a
// subtree of dentries.
package dsmcc

import (
	"encoding/binary"
	"errors"
)

// ErrShortPayload is returned whenever a DSM-CC/BIOP/IOR structure is
// truncated relative to a length field it itself declares.
var ErrShortPayload = errors.New("dsmcc: short payload")

// ErrBadMagic is returned when a BIOP message header's magic field is not
// "BIOP", per biop.c's biop_parse_message_header sanity check.
var ErrBadMagic = errors.New("dsmcc: bad BIOP magic")

// Profile tag values recognised inside an IOP::TaggedProfile, per iop.c's
// iop_parse_tagged_profiles switch.
const (
	profileTagBIOP           = 0x49534f06
	profileTagConnBinder      = 0x49534f40
	profileTagObjectLocation  = 0x49534f50
	profileTagLiteOptions     = 0x49534f05
	profileTagServiceLocation = 0x49534f46
)

// Tap use values, per biop.h's BIOP_*_USE.
const (
	TapDeliveryParaUse = 0x0016
	TapObjectUse       = 0x0017
	TapESUse           = 0x0018
	TapProgramUse      = 0x0019
)

// MessageSelector is the DSM-CC message_selector() structure carried by a
// delivery-parameters tap, per biop.h's struct message_selector.
type MessageSelector struct {
	SelectorType  uint16
	TransactionID uint32
	Timeout       uint32
}

// Tap is a BIOP_Tap, per biop.h's struct dsmcc_tap.
type Tap struct {
	ID              uint16
	Use             uint16
	AssociationTag  uint16
	Selector        *MessageSelector
}

// ObjectLocation is a BIOP::ObjectLocation profile component, per
// biop.h's struct biop_object_location.
type ObjectLocation struct {
	Tag           uint32
	CarouselID    uint32
	ModuleID      uint16
	VersionMajor  byte
	VersionMinor  byte
	ObjectKey     uint32
	ObjectKeyLen  byte
}

// ConnBinder is a BIOP::ConnBinder profile component, per biop.h's struct
// biop_connbinder.
type ConnBinder struct {
	Tag  uint32
	Taps []Tap
}

// ProfileBody is a BIOP profile body (profile_id_tag == "IOP0"/0x49534f06),
// per biop.h's struct biop_profile_body.
type ProfileBody struct {
	ProfileDataByteOrder byte
	ComponentCount       byte
	ObjectLocation       ObjectLocation
	ConnBinder           ConnBinder
}

// TaggedProfile is one IOP::TaggedProfile(); only the BIOP profile body
// is decoded (the lite-options alternative is not in carriage by any
// example this port was grounded on, per iop.c's own "not implemented"
// stub for it).
type TaggedProfile struct {
	ProfileBody *ProfileBody
}

// IOR is an IOP::IOR(), per iop.h's struct iop_ior.
type IOR struct {
	TypeID   string
	Profiles []TaggedProfile
}

// GatewayObjectKey returns the object_key of ior's first BIOP profile
// body, the inode of the object the IOR locates, per spec.md §4.6's
// "From the IOR's first tagged profile body we extract the child inode"
// rule.
func (ior *IOR) GatewayObjectKey() (uint32, bool) {
	for _, p := range ior.Profiles {
		if p.ProfileBody != nil {
			return p.ProfileBody.ObjectLocation.ObjectKey, true
		}
	}
	return 0, false
}

// ParseIOR decodes an IOP::IOR() starting at buf[0], returning the number
// of bytes consumed.
func ParseIOR(buf []byte) (IOR, int, error) {
	var ior IOR
	if len(buf) < 8 {
		return ior, 0, ErrShortPayload
	}
	typeIDLen := int(binary.BigEndian.Uint32(buf[0:4]))
	j := 4
	if j+typeIDLen > len(buf) {
		return ior, 0, ErrShortPayload
	}
	ior.TypeID = string(buf[j : j+typeIDLen])
	j += typeIDLen
	if gap := typeIDLen % 4; gap != 0 {
		j += 4 - gap
	}
	if j+4 > len(buf) {
		return ior, 0, ErrShortPayload
	}
	count := int(binary.BigEndian.Uint32(buf[j : j+4]))
	j += 4

	ior.Profiles = make([]TaggedProfile, 0, count)
	for i := 0; i < count; i++ {
		if j+8 > len(buf) {
			return ior, 0, ErrShortPayload
		}
		idTag := binary.BigEndian.Uint32(buf[j : j+4])
		dataLen := int(binary.BigEndian.Uint32(buf[j+4 : j+8]))
		if j+8+dataLen > len(buf) {
			return ior, 0, ErrShortPayload
		}
		profile := TaggedProfile{}
		switch idTag {
		case profileTagBIOP:
			pb, _, err := parseProfileBody(buf[j : j+8+dataLen])
			if err != nil {
				return ior, 0, err
			}
			profile.ProfileBody = &pb
		case profileTagConnBinder:
			// A bare ConnBinder tagged profile refines an already-parsed
			// BIOP profile body rather than introducing a new one; no
			// carriage in this port's grounding sources exercises it
			// outside of the BIOP profile's own embedded ConnBinder, so
			// its body is skipped undecoded here (dprintf-only in the
			// original too).
		case profileTagObjectLocation, profileTagServiceLocation, profileTagLiteOptions:
			// Not carried by the BIOP carousel flavour this engine
			// targets; original_source leaves these as stubs too.
		}
		ior.Profiles = append(ior.Profiles, profile)
		j += 8 + dataLen
	}
	return ior, j, nil
}

// parseProfileBody decodes a BIOP ProfileBody, per biop.c's
// biop_parse_profile_body.
func parseProfileBody(buf []byte) (ProfileBody, int, error) {
	var pb ProfileBody
	if len(buf) < 10 {
		return pb, 0, ErrShortPayload
	}
	pb.ProfileDataByteOrder = buf[8]
	pb.ComponentCount = buf[9]
	j := 10

	ol, n, err := parseObjectLocation(buf[j:])
	if err != nil {
		return pb, 0, err
	}
	pb.ObjectLocation = ol
	j += n

	cb, n, err := parseConnBinder(buf[j:])
	if err != nil {
		return pb, 0, err
	}
	pb.ConnBinder = cb
	j += n

	return pb, j, nil
}

// parseObjectLocation decodes a BIOP::ObjectLocation, per biop.c's
// biop_parse_object_location.
func parseObjectLocation(buf []byte) (ObjectLocation, int, error) {
	var ol ObjectLocation
	if len(buf) < 14 {
		return ol, 0, ErrShortPayload
	}
	ol.Tag = binary.BigEndian.Uint32(buf[0:4])
	ol.CarouselID = binary.BigEndian.Uint32(buf[5:9])
	ol.ModuleID = binary.BigEndian.Uint16(buf[9:11])
	ol.VersionMajor = buf[11]
	ol.VersionMinor = buf[12]
	ol.ObjectKeyLen = buf[13]
	j := 14

	n := int(ol.ObjectKeyLen)
	if n > 4 {
		n = 4
	}
	if j+n > len(buf) {
		return ol, 0, ErrShortPayload
	}
	var key uint32
	for i := 0; i < n; i++ {
		key = key<<8 | uint32(buf[j+i])
	}
	ol.ObjectKey = key
	j += int(ol.ObjectKeyLen)

	return ol, j, nil
}

// parseConnBinder decodes a BIOP::ConnBinder, per biop.c's
// biop_parse_connbinder.
func parseConnBinder(buf []byte) (ConnBinder, int, error) {
	var cb ConnBinder
	if len(buf) < 6 {
		return cb, 0, ErrShortPayload
	}
	cb.Tag = binary.BigEndian.Uint32(buf[0:4])
	tapCount := int(buf[5])
	j := 6

	for i := 0; i < tapCount; i++ {
		if j+6 > len(buf) {
			return cb, 0, ErrShortPayload
		}
		tap := Tap{
			ID:             binary.BigEndian.Uint16(buf[j : j+2]),
			Use:            binary.BigEndian.Uint16(buf[j+2 : j+4]),
			AssociationTag: binary.BigEndian.Uint16(buf[j+4 : j+6]),
		}
		j += 6

		switch tap.Use {
		case TapDeliveryParaUse:
			if j+11 > len(buf) {
				return cb, 0, ErrShortPayload
			}
			tap.Selector = &MessageSelector{
				SelectorType:  binary.BigEndian.Uint16(buf[j+1 : j+3]),
				TransactionID: binary.BigEndian.Uint32(buf[j+3 : j+7]),
				Timeout:       binary.BigEndian.Uint32(buf[j+7 : j+11]),
			}
			j += 11
		case TapObjectUse:
			j++
		default:
			// Unsupported tap_use: original logs and stops decoding
			// further taps rather than guessing a selector() length.
			cb.Taps = append(cb.Taps, tap)
			return cb, j, nil
		}
		cb.Taps = append(cb.Taps, tap)
	}
	return cb, j, nil
}
