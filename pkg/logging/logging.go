/*
NAME
  logging.go - logging interface shared by every demuxfs core package.

AUTHOR
  AusOcean demuxfs contributors.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package logging defines the minimal logging contract used across the
// demuxfs core. It mirrors the level numbering of
// github.com/ausocean/utils/logging.Logger, but not its method shape: that
// package exposes one method per level (Debug/Info/Warning/Error/Fatal)
// rather than a single levelled Log call, so cmd/demuxfs adapts it with a
// small wrapper rather than passing it through directly. Keeping the
// single-method shape here lets every core package stay free of a hard
// dependency on the ausocean logger's concrete API.
package logging

// Log levels, numerically compatible with ausocean/utils/logging's levels.
const (
	Debug int8 = iota
	Info
	Warning
	Error
	Fatal
)

// Logger is implemented by anything that can receive levelled, structured
// log lines. Core packages take a Logger through their constructor rather
// than reach for a package-global, per the explicit-context redesign noted
// in DESIGN.md for the "shared_data" pattern.
type Logger interface {
	SetLevel(int8)
	Log(level int8, message string, params ...interface{})
}

// Nop is a Logger that discards everything. Useful in tests and as a safe
// zero value.
type Nop struct{}

func (Nop) SetLevel(int8)                                 {}
func (Nop) Log(level int8, message string, params ...interface{}) {}
