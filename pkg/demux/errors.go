/*
NAME
  errors.go - sentinel errors for the parser driver.

DESCRIPTION
  Collects the error kinds spec.md §7 names into a single sentinel set so
  callers can classify a failure with errors.Is rather than string
  matching, per the REDESIGN FLAGS direction away from the source's
  ad-hoc dprintf/TS_WARNING calls scattered through every table parser.

  Each is an independent sentinel created with errors.New; none wraps a
  lower package's own sentinel (pkg/ts, pkg/psi/tables, pkg/dsmcc), so
  errors.Is against one of these does not match those packages' errors.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package demux

import "github.com/pkg/errors"

var (
	// ErrBackendFatal is sent on the error channel Driver.Start returns
	// (wrapped with the backend's own error) when the input backend's Read
	// returns an error, and is returned by Start itself when the backend's
	// Create fails.
	ErrBackendFatal = errors.New("demux: backend read failed fatally")

	// ErrMalformedPacket mirrors ts.ErrMalformedPacket at the driver's
	// level (bad sync byte, invalid adaptation_field_length).
	ErrMalformedPacket = errors.New("demux: malformed TS packet")

	// ErrContinuityBreak is not returned by anything in this package
	// (pkg/ts.Demultiplexer handles a continuity break internally by
	// resetting the affected PID's section/PES state and logging), but is
	// exported here as the stable identity callers can match against in
	// that log line.
	ErrContinuityBreak = errors.New("demux: continuity_counter break")

	// ErrCrcMismatch is the stable identity for a dropped PSI section's
	// CRC-32 mismatch diagnostic, mirroring ErrContinuityBreak's role.
	ErrCrcMismatch = errors.New("demux: CRC-32 mismatch")

	// ErrShortPayload is returned when a table body or DSM-CC message is
	// shorter than its minimal fixed prefix. It names the same condition
	// as tables.ErrShortTable and dsmcc.ErrShortPayload but does not wrap
	// them.
	ErrShortPayload = errors.New("demux: short payload")

	// ErrUnknownTag is the stable identity for an unrecognised
	// descriptor_tag or DSM-CC profile/object tag, logged and skipped
	// rather than treated as fatal.
	ErrUnknownTag = errors.New("demux: unknown tag")

	// ErrForwardReference is not a real error: a DSM-CC binding that
	// names a parent inode not yet seen is not a failure, it is staged
	// under the carousel's stepfather directory and represented by that
	// staged result, not by returning this value. It exists purely as a
	// documented, matchable identity for callers (tests, diagnostics)
	// that want to talk about the condition without it ever flowing
	// through a return path.
	ErrForwardReference = errors.New("demux: DSM-CC forward reference (not a real error)")

	// ErrOrphanAfterScan is the stable identity for the diagnostic logged
	// when Carousel.ReparentOrphans discards a binding whose parent inode
	// never resolved.
	ErrOrphanAfterScan = errors.New("demux: DSM-CC orphan unresolved after carousel scan")
)
