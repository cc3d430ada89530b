/*
NAME
  registry.go - PID->parser registry and table_id dispatch.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package psi

import "sync"

// TableParser handles one fully reassembled, CRC-verified PSI section.
// pid is the TS PID the section arrived on (needed because a handful of
// table_ids, e.g. TOT 0x73 and DII 0x3B, are ambiguous without it).
type TableParser func(pid uint16, section []byte) error

// Registry is a read-only-after-startup PID->parser map plus a
// table_id->parser map, used by the demultiplexer to decide who should
// handle a given PSI PID and, for PIDs carrying more than one table_id
// (e.g. NIT/EIT actual+other, or DSI/DII sharing PID 0x1F0-ish ranges),
// which specific parser applies.
//
// Built once at startup and read-only thereafter, per the REDESIGN FLAGS
// direction to express runtime dispatch-by-tag as an array/map of records
// rather than function pointers threaded through shared_data.
type Registry struct {
	mu        sync.RWMutex
	byPID     map[uint16]TableParser
	byTableID map[byte]TableParser
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byPID:     make(map[uint16]TableParser),
		byTableID: make(map[byte]TableParser),
	}
}

// RegisterPID associates parser with pid. Nothing in this module calls it:
// every table parser, PMT included, is registered by table_id, and the
// PAT/PMT parsers only mark newly discovered PIDs as PSI-carrying on the
// demultiplexer.
func (r *Registry) RegisterPID(pid uint16, parser TableParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byPID[pid] = parser
}

// UnregisterPID removes any parser registered for pid.
func (r *Registry) UnregisterPID(pid uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byPID, pid)
}

// RegisterTableID associates parser with a table_id, for PIDs that are not
// individually registered (the well-known PSI PIDs whose table_id is fixed
// and unambiguous, e.g. PAT on PID 0x00, table_id 0x00).
func (r *Registry) RegisterTableID(tableID byte, parser TableParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byTableID[tableID] = parser
}

// Dispatch picks a parser for the given pid/table_id pair, preferring a
// PID-specific registration (needed for ambiguous table_ids such as TOT
// 0x73 and DII/DSI 0x3B) and falling back to the table_id-keyed map.
func (r *Registry) Dispatch(pid uint16, tableID byte) (TableParser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.byPID[pid]; ok {
		return p, true
	}
	if p, ok := r.byTableID[tableID]; ok {
		return p, true
	}
	return nil, false
}
