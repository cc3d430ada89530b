/*
NAME
  logadapter.go - bridges github.com/ausocean/utils/logging's per-level
  method API onto pkg/logging.Logger's single Log(level, ...) method.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package main

import (
	dlog "github.com/ausocean/demuxfs/pkg/logging"
	alog "github.com/ausocean/utils/logging"
)

// ausoceanLogAdapter satisfies pkg/logging.Logger by dispatching to the
// named method github.com/ausocean/utils/logging.Logger exposes for each
// level, the way cmd/rv/main.go and cmd/looper/main.go call it directly
// (l.Debug(...), l.Warning(...), l.Error(...), l.Fatal(...)).
type ausoceanLogAdapter struct {
	l alog.Logger
}

// SetLevel is a no-op: the wrapped logger's verbosity is fixed at
// construction via alog.New's verbosity argument, and nothing in this
// repo needs to change it at runtime.
func (ausoceanLogAdapter) SetLevel(int8) {}

func (a ausoceanLogAdapter) Log(level int8, message string, params ...interface{}) {
	switch level {
	case dlog.Debug:
		a.l.Debug(message, params...)
	case dlog.Info:
		a.l.Info(message, params...)
	case dlog.Warning:
		a.l.Warning(message, params...)
	case dlog.Error:
		a.l.Error(message, params...)
	case dlog.Fatal:
		a.l.Fatal(message, params...)
	default:
		a.l.Error(message, params...)
	}
}
