/*
NAME
  biop.go - BIOP message decode: headers, names, bindings, directory and
  file messages.

DESCRIPTION
  Implements the BIOP message layer of spec.md §4.6, grounded on
  original_source/src/dsm-cc/biop.{c,h}'s biop_parse_message_header,
  biop_parse_message_sub_header, biop_parse_name,
  biop_parse_directory_message and biop_parse_file_message.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package dsmcc

import (
	"encoding/binary"
)

// Magic values for BIOP::MessageHeader.message_type and ObjectKind, per
// biop.h.
const (
	biopMagic = 0x42494f50 // "BIOP"

	objectKindFile          = 0x66696c00 // "fil\0"
	objectKindDirectory     = 0x64697200 // "dir\0"
	objectKindStream        = 0x73747200 // "str\0"
	objectKindStreamEvent   = 0x73746500 // "ste\0"
	objectKindServiceGateway = 0x73726700 // "srg\0"
)

// MessageHeader is BIOP::MessageHeader, per biop.h's struct
// biop_message_header.
type MessageHeader struct {
	VersionMajor byte
	VersionMinor byte
	MessageSize  uint32
}

// parseMessageHeader decodes a 12-byte BIOP message header, per biop.c's
// biop_parse_message_header.
func parseMessageHeader(buf []byte) (MessageHeader, int, error) {
	var h MessageHeader
	if len(buf) < 12 {
		return h, 0, ErrShortPayload
	}
	if binary.BigEndian.Uint32(buf[0:4]) != biopMagic {
		return h, 0, ErrBadMagic
	}
	h.VersionMajor = buf[4]
	h.VersionMinor = buf[5]
	// buf[6] byte_order, buf[7] message_type: both fixed at 0 and unused.
	h.MessageSize = binary.BigEndian.Uint32(buf[8:12])
	return h, 12, nil
}

// MessageSubHeader is BIOP::Message's common sub-header, per biop.h's
// struct biop_message_sub_header.
type MessageSubHeader struct {
	ObjectKey      []byte
	ObjectKindTag  uint32
	ContentSize    uint64
	HasContentSize bool
}

// Inode derives this sub-header's dentry inode: the first four bytes of
// object_key interpreted as a big-endian uint32, per biop.c's
// biop_get_sub_header_inode.
func (h *MessageSubHeader) Inode() uint32 {
	var v uint32
	for i := 0; i < len(h.ObjectKey) && i < 4; i++ {
		v = v<<8 | uint32(h.ObjectKey[i])
	}
	return v
}

// objectKindString renders kind's four tag bytes as a bare string (the
// trailing NUL is stripped), e.g. "dir", "fil", "srg".
func objectKindString(kind uint32) string {
	b := []byte{byte(kind >> 24), byte(kind >> 16), byte(kind >> 8), byte(kind)}
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return string(b[:n])
}

// parseMessageSubHeader decodes a BIOP::Message sub-header, per biop.c's
// biop_parse_message_sub_header. The object_info payload is parsed as a
// file_object_info_t (content_size uint64 + descriptors) only when
// ObjectKindTag is "fil"; otherwise it is skipped as an opaque descriptor
// list.
func parseMessageSubHeader(buf []byte) (MessageSubHeader, int, error) {
	var h MessageSubHeader
	if len(buf) < 1 {
		return h, 0, ErrShortPayload
	}
	keyLen := int(buf[0])
	j := 1
	if j+keyLen > len(buf) {
		return h, 0, ErrShortPayload
	}
	h.ObjectKey = append([]byte(nil), buf[j:j+keyLen]...)
	j += keyLen

	if j+4 > len(buf) {
		return h, 0, ErrShortPayload
	}
	h.ObjectKindTag = binary.BigEndian.Uint32(buf[j : j+4])
	j += 4

	if j+4 > len(buf) {
		return h, 0, ErrShortPayload
	}
	objectInfoLen := int(binary.BigEndian.Uint32(buf[j : j+4]))
	j += 4
	infoStart := j
	if j+objectInfoLen > len(buf) {
		return h, 0, ErrShortPayload
	}

	if h.ObjectKindTag == objectKindFile && objectInfoLen >= 8 {
		h.ContentSize = binary.BigEndian.Uint64(buf[infoStart : infoStart+8])
		h.HasContentSize = true
	}
	j = infoStart + objectInfoLen

	if j+2 > len(buf) {
		return h, 0, ErrShortPayload
	}
	svcCount := int(binary.BigEndian.Uint16(buf[j : j+2]))
	j += 2
	for i := 0; i < svcCount; i++ {
		if j+8 > len(buf) {
			return h, 0, ErrShortPayload
		}
		dataLen := int(binary.BigEndian.Uint32(buf[j+4 : j+8]))
		j += 8
		if j+dataLen > len(buf) {
			return h, 0, ErrShortPayload
		}
		j += dataLen
	}

	return h, j, nil
}

// Name is BIOP::Name, per biop.h's struct biop_name.
type Name struct {
	ID   string
	Kind string // e.g. "dir", "fil"
}

// parseName decodes a BIOP::Name, per biop.c's biop_parse_name. The wire
// format leads with a name_component_count byte, which the original only
// warns on if it isn't 1 rather than looping; this decoder makes the same
// single-component assumption and just skips the byte.
func parseName(buf []byte) (Name, int, error) {
	var n Name
	if len(buf) < 2 {
		return n, 0, ErrShortPayload
	}
	// buf[0] is name_component_count, assumed 1 per biop_parse_name.
	idLen := int(buf[1])
	j := 2
	if j+idLen > len(buf) {
		return n, 0, ErrShortPayload
	}
	n.ID = string(buf[j : j+idLen])
	j += idLen

	if j+1 > len(buf) {
		return n, 0, ErrShortPayload
	}
	kindLen := int(buf[j])
	j++
	if j+kindLen > len(buf) {
		return n, 0, ErrShortPayload
	}
	n.Kind = objectKindString(binary.BigEndian.Uint32(padTo4(buf[j : j+kindLen])))
	j += kindLen

	return n, j, nil
}

// padTo4 right-pads b with zero bytes to length 4 so a shorter kind_data
// field can still be read as a big-endian uint32 tag.
func padTo4(b []byte) []byte {
	if len(b) >= 4 {
		return b[:4]
	}
	out := make([]byte, 4)
	copy(out, b)
	return out
}

// Binding is one BIOP::Binding inside a directory message, per biop.h's
// struct biop_binding.
type Binding struct {
	Name           Name
	BindingType    byte
	IOR            IOR
	ContentSize    uint64
	HasContentSize bool
	ContentType    string
	ChildInode     uint32
	HasChildInode  bool
}

// parseBinding decodes one BIOP::Binding, per biop.c's
// biop_parse_directory_message's per-binding loop body.
func parseBinding(buf []byte) (Binding, int, error) {
	var b Binding
	name, n, err := parseName(buf)
	if err != nil {
		return b, 0, err
	}
	b.Name = name
	j := n

	if j+1 > len(buf) {
		return b, 0, ErrShortPayload
	}
	b.BindingType = buf[j]
	j++

	ior, n, err := ParseIOR(buf[j:])
	if err != nil {
		return b, 0, err
	}
	b.IOR = ior
	j += n
	if key, ok := ior.GatewayObjectKey(); ok {
		b.ChildInode = key
		b.HasChildInode = true
	}

	if j+2 > len(buf) {
		return b, 0, ErrShortPayload
	}
	childInfoLen := int(binary.BigEndian.Uint16(buf[j : j+2]))
	j += 2
	infoStart := j
	if j+childInfoLen > len(buf) {
		return b, 0, ErrShortPayload
	}

	k := infoStart
	if b.Name.Kind == "fil" && childInfoLen >= 8 {
		b.ContentSize = binary.BigEndian.Uint64(buf[k : k+8])
		b.HasContentSize = true
		k += 8
	}
	// Remaining bytes up to infoStart+childInfoLen are a descriptor list
	// (content_type tag 0x72, timestamp tag 0x81); only content_type is of
	// interest to this filesystem (spec.md §4.6 does not surface mtimes).
	for k+2 <= infoStart+childInfoLen {
		tag := buf[k]
		dlen := int(buf[k+1])
		k += 2
		if k+dlen > infoStart+childInfoLen {
			break
		}
		if tag == 0x72 && dlen > 0 {
			b.ContentType = string(buf[k : k+dlen])
		}
		k += dlen
	}
	j = infoStart + childInfoLen

	return b, j, nil
}

// DirectoryMessage is a BIOP DirectoryMessage, per biop.h's struct
// biop_directory_message.
type DirectoryMessage struct {
	SubHeader MessageSubHeader
	Bindings  []Binding
}

// ParseDirectoryMessage decodes a full BIOP DirectoryMessage (header
// already consumed by the caller's lookahead), per biop.c's
// biop_parse_directory_message.
func ParseDirectoryMessage(buf []byte) (DirectoryMessage, int, error) {
	var m DirectoryMessage
	sub, n, err := parseMessageSubHeader(buf)
	if err != nil {
		return m, 0, err
	}
	m.SubHeader = sub
	j := n

	if j+4 > len(buf) {
		return m, 0, ErrShortPayload
	}
	j += 4 // message_body_length, re-derivable from the outer walk.

	if j+2 > len(buf) {
		return m, 0, ErrShortPayload
	}
	count := int(binary.BigEndian.Uint16(buf[j : j+2]))
	j += 2

	m.Bindings = make([]Binding, 0, count)
	for i := 0; i < count; i++ {
		binding, n, err := parseBinding(buf[j:])
		if err != nil {
			return m, 0, err
		}
		m.Bindings = append(m.Bindings, binding)
		j += n
	}
	return m, j, nil
}

// FileMessage is a BIOP FileMessage, per biop.h's struct
// biop_file_message.
type FileMessage struct {
	SubHeader MessageSubHeader
	Contents  []byte
}

// ParseFileMessage decodes a full BIOP FileMessage (header already
// consumed by the caller's lookahead), per biop.c's
// biop_parse_file_message.
func ParseFileMessage(buf []byte) (FileMessage, int, error) {
	var m FileMessage
	sub, n, err := parseMessageSubHeader(buf)
	if err != nil {
		return m, 0, err
	}
	m.SubHeader = sub
	j := n

	if j+4 > len(buf) {
		return m, 0, ErrShortPayload
	}
	j += 4 // message_body_length.

	if j+4 > len(buf) {
		return m, 0, ErrShortPayload
	}
	contentLen := int(binary.BigEndian.Uint32(buf[j : j+4]))
	j += 4
	if j+contentLen > len(buf) {
		return m, 0, ErrShortPayload
	}
	m.Contents = buf[j : j+contentLen]
	j += contentLen

	return m, j, nil
}
