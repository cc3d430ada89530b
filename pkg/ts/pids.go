/*
NAME
  pids.go - well-known PSI PIDs.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package ts

// Well-known PSI PIDs, per spec.md §4.1. PMT and DSM-CC stream PIDs are
// discovered dynamically (from the PAT and PMT respectively) rather than
// being well-known.
const (
	PIDPAT  uint16 = 0x00
	PIDCAT  uint16 = 0x01
	PIDNIT  uint16 = 0x10
	PIDSDT  uint16 = 0x11 // also BAT
	PIDEIT  uint16 = 0x12 // also 0x26, 0x27
	PIDEIT2 uint16 = 0x26
	PIDEIT3 uint16 = 0x27
	PIDRST  uint16 = 0x13
	PIDTDT  uint16 = 0x14
	PIDDCT  uint16 = 0x17
	PIDDIT  uint16 = 0x1E
	PIDSIT  uint16 = 0x1F
	PIDPCAT uint16 = 0x22
	PIDSDTT uint16 = 0x23 // also 0x28
	PIDSDTT2 uint16 = 0x28
	PIDBIT  uint16 = 0x24
	PIDNBIT uint16 = 0x25 // also LDT
	PIDCDT  uint16 = 0x29
)

// WellKnownPSIPIDs reports whether pid is one of the fixed PSI PIDs that
// the demultiplexer always treats as carrying sections, independent of any
// table announcing it. PMT PIDs and DSM-CC elementary-stream PIDs are not
// included here: they are registered dynamically once discovered.
func WellKnownPSIPIDs() map[uint16]bool {
	return map[uint16]bool{
		PIDPAT: true, PIDCAT: true, PIDNIT: true, PIDSDT: true,
		PIDEIT: true, PIDEIT2: true, PIDEIT3: true, PIDRST: true,
		PIDTDT: true, PIDDCT: true, PIDDIT: true, PIDSIT: true,
		PIDPCAT: true, PIDSDTT: true, PIDSDTT2: true, PIDBIT: true,
		PIDNBIT: true, PIDCDT: true,
	}
}
