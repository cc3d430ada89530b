/*
NAME
  pes.go - PES reassembly: header decode, ES extraction, FIFO delivery.

DESCRIPTION
  Implements spec.md §4.5's PES responsibility. pkg/ts.Demultiplexer
  already does TS-packet-level PES reassembly (PUSI-triggered flush,
  declared-length tracking, continuity handling — see pkg/ts/demux.go's
  processPES) and hands this package complete PES blobs through
  HandlePES; Reassembler's job, grounded on
  original_source/src/tables/pes.c's pes_parse_audio/pes_parse_video and
  pes_append_to_fifo, is narrower: decode the PES header, split the blob
  into its raw "pes" form and its header-stripped "es" form, and deliver
  both to the FIFOs the PMT parser bound for that PID.

  FIFO delivery itself (buffered, non-blocking channel writes) lives in
  fifo.go; the lazy-open-writer gate (skip a FIFO whose dentry nobody has
  open) is the IsOpen check in HandlePES below, per SPEC_FULL.md's direction
  to ground it on the teacher's revid pipeline fan-out style rather than
  on the source's named-pipe FIFO.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package pes

import (
	"sync"

	"github.com/ausocean/demuxfs/pkg/logging"
	"github.com/ausocean/demuxfs/pkg/tree"
)

// streamClass classifies a PMT stream_type for the purposes of this
// package's boundary-sync choice only; it intentionally duplicates
// pkg/psi/tables' classifyStreamType rather than importing it, since
// pkg/psi/tables already depends on this package's Reassembler through
// the PESBinder interface and importing back would cycle.
type streamClass int

const (
	classOther streamClass = iota
	classVideo
	classAudio
)

func classify(streamType byte) streamClass {
	switch streamType {
	case 0x01, 0x02, 0x1B:
		return classVideo
	case 0x03, 0x04, 0x0F, 0x11, 0x81:
		return classAudio
	default:
		return classOther
	}
}

// stream holds the per-PID state a bound elementary stream needs:
// its FIFO dentries and Fifo writers, its class (for boundary sync), and
// whether the ES FIFO has delivered its first post-sync chunk yet.
type stream struct {
	streamType byte
	class      streamClass

	pesDentry *tree.Dentry
	esDentry  *tree.Dentry
	pesFifo   *Fifo
	esFifo    *Fifo

	esSynced bool
}

// Reassembler implements ts.PESSink and tables.PESBinder. One
// Reassembler is shared across every PID a demux session carries PES on.
type Reassembler struct {
	mu      sync.Mutex
	streams map[uint16]*stream
	log     logging.Logger

	// fifoCapacity is the channel capacity new Fifos are created with; 0
	// selects DefaultFifoCapacity.
	fifoCapacity int
}

// NewReassembler constructs a Reassembler. fifoCapacity <= 0 selects
// DefaultFifoCapacity.
func NewReassembler(fifoCapacity int, log logging.Logger) *Reassembler {
	if log == nil {
		log = logging.Nop{}
	}
	return &Reassembler{
		streams:      make(map[uint16]*stream),
		log:          log,
		fifoCapacity: fifoCapacity,
	}
}

// BindStream registers pid as a PES-carrying elementary stream, binding
// a Fifo to each of its pesFIFO/esFIFO dentries (esFIFO is nil when ES
// extraction is disabled, per spec.md §6's parse_pes option).
func (r *Reassembler) BindStream(pid uint16, streamType byte, pesFIFO, esFIFO *tree.Dentry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &stream{
		streamType: streamType,
		class:      classify(streamType),
		pesDentry:  pesFIFO,
		esDentry:   esFIFO,
	}
	if pesFIFO != nil {
		s.pesFifo = NewFifo(r.fifoCapacity)
		pesFIFO.Priv = s.pesFifo
	}
	if esFIFO != nil {
		s.esFifo = NewFifo(r.fifoCapacity)
		esFIFO.Priv = s.esFifo
	}
	r.streams[pid] = s
}

// UnbindStream removes pid's FIFO bindings, e.g. on a PMT version change
// that drops the stream.
func (r *Reassembler) UnbindStream(pid uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.streams, pid)
}

// HandlePES implements ts.PESSink. data is one complete (or, for an
// unbounded video stream, flushed) PES blob starting at its
// packet_start_code_prefix.
func (r *Reassembler) HandlePES(pid uint16, data []byte, unbounded bool) {
	r.mu.Lock()
	s, ok := r.streams[pid]
	r.mu.Unlock()
	if !ok {
		return
	}

	if s.pesFifo != nil && s.pesDentry.IsOpen() {
		s.pesFifo.Append(data)
	}
	if s.esFifo == nil {
		return
	}
	if !s.esDentry.IsOpen() {
		return
	}

	hdr, err := decodeHeader(data)
	if err != nil {
		r.log.Log(logging.Warning, "short PES header, dropping", "pid", pid, "err", err)
		return
	}
	if hdr.DataOffset > len(data) {
		return
	}
	payload := data[hdr.DataOffset:]
	if len(payload) == 0 {
		return
	}

	if !s.esSynced {
		synced, ok := syncBoundary(s.class, payload)
		if !ok {
			return
		}
		payload = synced
		s.esSynced = true
	}

	s.esFifo.Append(payload)
}

// syncBoundary locates the start of the first complete access unit in
// payload, per original_source/src/tables/pes.c's pes_append_to_fifo
// first-delivery NAL-IDC / LATM-syncword scan. The exact
// IS_NAL_IDC_REFERENCE/IS_AAC_LATM_SYNCWORD macros are not present in the
// pruned original source available to this port; the tests below are
// standard H.264 NAL-reference and AAC LATM/LOAS sync patterns rather
// than a byte-for-byte port of the original macros.
func syncBoundary(class streamClass, payload []byte) ([]byte, bool) {
	switch class {
	case classVideo:
		return syncH264(payload)
	case classAudio:
		return syncLATM(payload)
	default:
		return payload, true
	}
}

// syncH264 finds the first NAL unit, after a 3- or 4-byte start code,
// whose nal_ref_idc is non-zero (i.e. a reference picture, not filler or
// an SEI/AUD unit), and returns payload from that start code onward.
func syncH264(payload []byte) ([]byte, bool) {
	for i := 0; i+3 < len(payload); i++ {
		if payload[i] != 0x00 || payload[i+1] != 0x00 {
			continue
		}
		scLen := 0
		switch {
		case payload[i+2] == 0x01:
			scLen = 3
		case i+4 < len(payload) && payload[i+2] == 0x00 && payload[i+3] == 0x01:
			scLen = 4
		default:
			continue
		}
		nalByte := payload[i+scLen]
		if nalByte&0x60 != 0 {
			return payload[i:], true
		}
	}
	return nil, false
}

// syncLATM finds the first AAC LATM/LOAS syncword (11 bits, 0x2B7: byte0
// == 0x56, top three bits of byte1 set) and returns payload from there.
func syncLATM(payload []byte) ([]byte, bool) {
	for i := 0; i+1 < len(payload); i++ {
		if payload[i] == 0x56 && payload[i+1]&0xE0 == 0xE0 {
			return payload[i:], true
		}
	}
	return nil, false
}
