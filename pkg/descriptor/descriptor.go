/*
NAME
  descriptor.go - descriptor tag registry and walk.

DESCRIPTION
  Implements spec.md §4.4: two independent 256-slot arrays indexed by
  descriptor_tag (one for MPEG/ARIB TS descriptors, one for DSM-CC
  descriptors), built once at startup and read-only thereafter, per the
  REDESIGN FLAGS direction away from the source's function-pointer arrays.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package descriptor provides the MPEG/ARIB TS descriptor registry and the
// parallel DSM-CC descriptor registry, plus the shared Context record that
// replaces the source's global shared_data pointer.
package descriptor

import "github.com/ausocean/demuxfs/pkg/tree"

// Context carries state descriptor parsers may need beyond their own
// payload bytes, such as the stream_type the enclosing PMT entry declared
// (needed by the stream_identifier_descriptor, tag 0x52, to refine
// primary/secondary/one-seg classification). It replaces the source's
// process-wide shared_data pointer with an explicit, per-invocation record
// built by the calling table parser.
type Context struct {
	// StreamType is the stream_type byte of the PMT entry a descriptor was
	// found under, or 0 outside of a PMT context.
	StreamType byte

	// ComponentTag is a slot for a stream_identifier descriptor's (0x52)
	// component_tag. No registered parser fills it in; the PMT parser reads
	// component_tag straight from the ES_info bytes (componentTagFromInfo).
	ComponentTag *byte

	// Shared is an escape hatch for values a specific table/descriptor pair
	// needs to exchange that do not warrant a dedicated field.
	Shared map[string]interface{}
}

// NewContext returns a Context ready to be passed down a descriptor walk.
func NewContext() *Context {
	return &Context{Shared: make(map[string]interface{})}
}

// Parser decodes one descriptor's payload (the bytes strictly between the
// tag/length pair and the next descriptor) into child nodes under parent.
type Parser func(parent *tree.Dentry, payload []byte, ctx *Context) error

// entry is one slot of a registry.
type entry struct {
	name   string
	parser Parser
}

// Registry is a 256-slot, tag-indexed descriptor dispatch table. The zero
// value is usable; register entries with Register before first use.
type Registry struct {
	slots [256]*entry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry { return &Registry{} }

// Register installs parser under tag with the given display name (used
// only for diagnostics). Calling Register twice for the same tag replaces
// the previous entry; callers should do all registration once at startup.
func (r *Registry) Register(tag byte, name string, parser Parser) {
	r.slots[tag] = &entry{name: name, parser: parser}
}

// Lookup returns the parser registered for tag, if any.
func (r *Registry) Lookup(tag byte) (Parser, string, bool) {
	e := r.slots[tag]
	if e == nil {
		return nil, "", false
	}
	return e.parser, e.name, true
}

// Parse walks every descriptor in b from its first byte to its end,
// invoking the registered parser for each with its payload slice, per
// spec.md §4.4. Unknown tags are skipped (counted in skipped) rather than
// treated as an error. A descriptor whose declared length runs past the
// end of b stops the walk without an error; nothing is read past b.
func (r *Registry) Parse(b []byte, parent *tree.Dentry, ctx *Context) (skipped int, err error) {
	offset := 0
	for offset < len(b) {
		if offset+2 > len(b) {
			break
		}
		tag := b[offset]
		length := int(b[offset+1])
		if offset+2+length > len(b) {
			break
		}
		payload := b[offset+2 : offset+2+length]
		if parser, _, ok := r.Lookup(tag); ok {
			if err := parser(parent, payload, ctx); err != nil {
				return skipped, err
			}
		} else {
			skipped++
		}
		offset += 2 + length
	}
	return skipped, nil
}

// Count returns the number of descriptors found in the first regionLen
// bytes of b, or 0 if a malformed length would overflow regionLen, per
// spec.md §4.4's descriptors_count contract.
func Count(b []byte, regionLen int) int {
	if regionLen > len(b) {
		regionLen = len(b)
	}
	offset := 0
	n := 0
	for offset < regionLen {
		if offset+2 > regionLen {
			return 0
		}
		length := int(b[offset+1])
		if offset+2+length > regionLen {
			return 0
		}
		n++
		offset += 2 + length
	}
	return n
}
