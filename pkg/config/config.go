/*
NAME
  config.go - demuxfs startup configuration.

AUTHOR
  AusOcean demuxfs contributors.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package config contains the configuration settings for demuxfs, mirroring
// the flat, enum-constants style of github.com/ausocean/av/revid/config.
package config

// Standard identifies the digital TV standard the incoming multiplex
// follows. This mostly affects which table set (ARIB vs DVB vs ATSC) a
// driver should prefer when a table_id is ambiguous.
type Standard int

const (
	// StandardUnset indicates no standard has been configured.
	StandardUnset Standard = iota
	StandardSBTVD
	StandardISDB
	StandardDVB
	StandardATSC
)

func (s Standard) String() string {
	switch s {
	case StandardSBTVD:
		return "SBTVD"
	case StandardISDB:
		return "ISDB"
	case StandardDVB:
		return "DVB"
	case StandardATSC:
		return "ATSC"
	default:
		return "unset"
	}
}

// ReportMask selects which diagnostics get logged. Values match the
// upstream demuxfs enum error_type exactly so external tooling observing
// the mask remains compatible.
type ReportMask uint8

const (
	ReportCRC        ReportMask = 1
	ReportContinuity ReportMask = 2
	ReportAll        ReportMask = 0xff
)

// Has reports whether mask selects the given diagnostic.
func (m ReportMask) Has(flag ReportMask) bool { return m&flag != 0 }

// Config holds the parameters needed to start a demuxfs session. A new
// Config must be passed to the driver constructor; there is no global
// default instance.
type Config struct {
	// Backend names the input backend to use (file, dvb, gst, ...). The
	// concrete backend implementation is resolved by the caller; demuxfs
	// core only validates it via pkg/backend.Validate.
	Backend string

	// ParsePES enables PES reassembly and ES extraction. When false, only
	// PSI/DSM-CC paths run and the "es" FIFOs are never populated.
	ParsePES bool

	// Standard selects the digital TV standard in use.
	Standard Standard

	// TmpDir is a filesystem path demuxfs may use for scratch state, such
	// as a sidecar file watched for live report-mask changes.
	TmpDir string

	// Report selects which diagnostics are logged.
	Report ReportMask

	// Frequency is the tuner frequency in Hz, used only by tuner-backed
	// backends. Zero means "not applicable".
	Frequency uint32

	// MountPoint is the filesystem path demuxfs's tree is made available
	// under by the (external) filesystem binding. demuxfs core does not
	// use this itself; it is threaded through so cmd/demuxfs can hand it to
	// a binding package.
	MountPoint string
}

// Exit codes, matching spec.md §6.
const (
	ExitSuccess       = 0
	ExitBadOption     = 1
	ExitBackendFailed = 2
)
