/*
NAME
  demux.go - packet-level demultiplexer.

DESCRIPTION
  Implements spec.md §4.1: adaptation-field stripping, PUSI handling,
  pointer_field walking for PSI, declared-length tracking for PES, and
  dispatch into the PSI registry or a PES sink.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package ts

import (
	"fmt"
	"sync/atomic"

	"github.com/ausocean/demuxfs/pkg/config"
	"github.com/ausocean/demuxfs/pkg/logging"
	"github.com/ausocean/demuxfs/pkg/metrics"
	"github.com/ausocean/demuxfs/pkg/psi"
)

// PESSink receives complete (or, for an unbounded video stream, flushed)
// PES byte sequences for a registered ES PID.
type PESSink interface {
	HandlePES(pid uint16, data []byte, unbounded bool)
}

type pesEntry struct {
	buf         *psi.Buffer
	declaredLen int // pes_packet_length; 0 means unbounded.
}

// Demultiplexer is the stateful packet-level demultiplexer described in
// spec.md §4.1. One Demultiplexer instance exists per parser session.
type Demultiplexer struct {
	registry *psi.Registry
	ct       *ContinuityTracker
	log      logging.Logger
	report   atomic.Uint32 // config.ReportMask, set at construction and live-updatable via SetReport.
	metrics  *metrics.Registry

	psiPIDs map[uint16]bool // PIDs handled via the PSI/section path.
	psiBuf  map[uint16]*psi.Buffer

	pesSinks map[uint16]PESSink
	pesBuf   map[uint16]*pesEntry
}

// NewDemultiplexer constructs a Demultiplexer with no PIDs marked; the
// caller marks the well-known PSI PIDs (see WellKnownPSIPIDs) with
// RegisterPSIPID, and PMT/NIT discovery registers further PIDs at runtime
// via RegisterPSIPID and RegisterPESPID.
func NewDemultiplexer(registry *psi.Registry, report config.ReportMask, log logging.Logger, m *metrics.Registry) *Demultiplexer {
	if log == nil {
		log = logging.Nop{}
	}
	d := &Demultiplexer{
		registry: registry,
		ct:       NewContinuityTracker(),
		log:      log,
		metrics:  m,
		psiPIDs:  make(map[uint16]bool),
		psiBuf:   make(map[uint16]*psi.Buffer),
		pesSinks: make(map[uint16]PESSink),
		pesBuf:   make(map[uint16]*pesEntry),
	}
	d.report.Store(uint32(report))
	return d
}

// SetReport replaces the live diagnostics bitmask, letting a caller (e.g.
// pkg/config.ReportWatcher) toggle CRC/continuity logging without
// restarting the parser.
func (d *Demultiplexer) SetReport(mask config.ReportMask) {
	d.report.Store(uint32(mask))
}

func (d *Demultiplexer) reportMask() config.ReportMask {
	return config.ReportMask(d.report.Load())
}

// RegisterPSIPID marks pid as carrying PSI/DSM-CC sections. Table-specific
// dispatch is still resolved through the Registry passed to
// NewDemultiplexer.
func (d *Demultiplexer) RegisterPSIPID(pid uint16) {
	d.psiPIDs[pid] = true
}

// UnregisterPSIPID stops treating pid as a PSI PID and drops any buffered
// partial section (used when a PMT upgrade retires an ES PID).
func (d *Demultiplexer) UnregisterPSIPID(pid uint16) {
	delete(d.psiPIDs, pid)
	delete(d.psiBuf, pid)
	d.ct.Reset(pid)
}

// RegisterPESPID marks pid as carrying PES and directs completed PES blobs
// to sink.
func (d *Demultiplexer) RegisterPESPID(pid uint16, sink PESSink) {
	d.pesSinks[pid] = sink
}

// UnregisterPESPID stops treating pid as a PES PID.
func (d *Demultiplexer) UnregisterPESPID(pid uint16) {
	delete(d.pesSinks, pid)
	delete(d.pesBuf, pid)
	d.ct.Reset(pid)
}

// ProcessPacket drives the state machine for one TS packet, per spec.md
// §4.1. All errors are local to this packet; ProcessPacket itself never
// returns an error for anything short of a malformed header, which the
// caller should simply count and continue past.
func (d *Demultiplexer) ProcessPacket(pkt []byte) error {
	h, err := ParseHeader(pkt)
	if err != nil {
		if d.metrics != nil {
			d.metrics.MalformedPackets.Inc()
		}
		return ErrMalformedPacket
	}

	switch h.AFC {
	case AFCReservedDiscard, AFCAdaptationOnly:
		return nil
	}

	payload, ok, err := Payload(pkt, h)
	if err != nil {
		if d.metrics != nil {
			d.metrics.MalformedPackets.Inc()
		}
		return nil
	}
	if !ok || len(payload) == 0 {
		return nil
	}

	switch {
	case d.psiPIDs[h.PID]:
		d.processPSI(h, payload)
	case d.pesSinks[h.PID] != nil:
		d.processPES(h, payload)
	}
	return nil
}

func (d *Demultiplexer) processPSI(h Header, payload []byte) {
	pid := h.PID
	trans := d.ct.Check(pid, h.CC)
	if trans == TransitionDuplicate {
		return
	}

	state := d.psiBuf[pid]

	if trans == TransitionBreak {
		if state != nil {
			d.continuityBreak(pid)
		}
		state = nil
	}

	if h.PUSI {
		if len(payload) == 0 {
			return
		}
		pointerField := int(payload[0])
		if 1+pointerField > len(payload) {
			return
		}
		tail := payload[1 : 1+pointerField]
		rest := payload[1+pointerField:]

		if state != nil && len(tail) > 0 {
			if err := state.Append(tail); err == nil && state.Full() {
				d.dispatchPSI(pid, state)
				state = nil
			} else if err != nil {
				state = nil
			}
		}

		state = d.scanSections(pid, rest, h.CC, state)
	} else {
		if state == nil {
			return
		}
		if err := state.Append(payload); err != nil {
			state = nil
		} else {
			state.SetLastCC(h.CC)
			if state.Full() {
				d.dispatchPSI(pid, state)
				state = nil
			}
		}
	}

	if state != nil {
		d.psiBuf[pid] = state
	} else {
		delete(d.psiBuf, pid)
	}
}

// scanSections walks zero or more complete/partial sections starting at
// off in rest, dispatching every complete one and returning a non-nil
// buffer only if the last section in rest was left incomplete.
func (d *Demultiplexer) scanSections(pid uint16, rest []byte, cc byte, carry *psi.Buffer) *psi.Buffer {
	_ = carry // any unfinished state prior to this PUSI was already resolved by the caller.
	offset := 0
	for offset < len(rest) {
		if rest[offset] == 0xFF {
			// Stuffing terminates section scanning for this payload.
			return nil
		}
		if len(rest)-offset < 3 {
			// Not enough bytes left to even read section_length; too rare
			// a boundary (it requires a section start in the last two
			// bytes of the payload) to be worth a cross-packet staging
			// area of its own. The fragment is dropped.
			return nil
		}
		sectionLength := (uint16(rest[offset+1]&0x0f) << 8) | uint16(rest[offset+2])
		need := 3 + int(sectionLength)
		avail := len(rest) - offset

		buf, err := psi.NewPSIBuffer(pid, int(sectionLength))
		if err != nil {
			return nil
		}

		if need <= avail {
			buf.Append(rest[offset : offset+need])
			buf.SetLastCC(cc)
			d.dispatchPSI(pid, buf)
			offset += need
			continue
		}
		buf.Append(rest[offset:])
		buf.SetLastCC(cc)
		return buf
	}
	return nil
}

func (d *Demultiplexer) dispatchPSI(pid uint16, buf *psi.Buffer) {
	section := buf.Bytes()
	if !psi.Verify(section) {
		if d.reportMask().Has(config.ReportCRC) {
			d.log.Log(logging.Warning, "CRC mismatch", "pid", fmt.Sprintf("0x%04x", pid))
		}
		if d.metrics != nil {
			d.metrics.CrcMismatches.Inc()
		}
		return
	}
	tableID := section[0]
	parser, ok := d.registry.Dispatch(pid, tableID)
	if !ok {
		return
	}
	if err := parser(pid, section); err != nil {
		d.log.Log(logging.Warning, "table parser failed", "pid", fmt.Sprintf("0x%04x", pid), "table_id", tableID, "err", err)
	}
}

func (d *Demultiplexer) continuityBreak(pid uint16) {
	if d.reportMask().Has(config.ReportContinuity) {
		d.log.Log(logging.Warning, "continuity break", "pid", fmt.Sprintf("0x%04x", pid))
	}
	if d.metrics != nil {
		d.metrics.ContinuityBreaks.WithLabelValues(fmt.Sprintf("0x%04x", pid)).Inc()
	}
	if d.metrics != nil {
		d.metrics.SectionResets.WithLabelValues(fmt.Sprintf("0x%04x", pid)).Inc()
	}
}

// pesHeaderPeekLen is how many bytes of a PES packet must be present
// before pes_packet_length (bytes 4-5 of the PES header) can be read.
const pesHeaderPeekLen = 6

func (d *Demultiplexer) processPES(h Header, payload []byte) {
	pid := h.PID
	sink := d.pesSinks[pid]

	if h.PUSI {
		if prev, ok := d.pesBuf[pid]; ok {
			// A new PES packet starts before the previous one reached its
			// declared length (or it was unbounded, which always flushes
			// on the next PUSI boundary).
			sink.HandlePES(pid, prev.buf.Bytes(), prev.declaredLen == 0)
			delete(d.pesBuf, pid)
		}
		d.ct.Check(pid, h.CC)

		if len(payload) < pesHeaderPeekLen {
			return
		}
		declaredLen := int(payload[4])<<8 | int(payload[5])
		buf := psi.NewPESBuffer(pid, declaredLen+6)
		buf.Unbounded = declaredLen == 0
		buf.Append(payload)
		buf.SetLastCC(h.CC)

		if !buf.Unbounded && buf.Size() >= declaredLen+6 {
			sink.HandlePES(pid, buf.Bytes(), false)
			return
		}
		d.pesBuf[pid] = &pesEntry{buf: buf, declaredLen: declaredLen}
		return
	}

	entry, ok := d.pesBuf[pid]
	if !ok {
		return
	}
	trans := d.ct.Check(pid, h.CC)
	switch trans {
	case TransitionBreak:
		delete(d.pesBuf, pid)
		return
	case TransitionDuplicate:
		return
	}
	entry.buf.Append(payload)
	entry.buf.SetLastCC(h.CC)
	if !entry.buf.Unbounded && entry.buf.Size() >= entry.declaredLen+6 {
		sink.HandlePES(pid, entry.buf.Bytes(), false)
		delete(d.pesBuf, pid)
	}
}
