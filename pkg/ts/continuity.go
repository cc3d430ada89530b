/*
NAME
  continuity.go - per-PID continuity_counter monotonicity check.

DESCRIPTION
  Adapts container/mts/discontinuity.go's DiscontinuityRepairer (which
  tracks an "expected" continuity_counter per PID in order to *repair* an
  outgoing stream) into a *checker* for an incoming stream: reporting
  whether the next packet's continuity_counter is a legal successor to the
  last one seen on that PID.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package ts

// Transition classifies the relationship between two consecutive
// continuity_counter values observed on the same PID.
type Transition int

const (
	// TransitionNext is the expected case: cc == (prev+1) mod 16.
	TransitionNext Transition = iota
	// TransitionDuplicate is a tolerated no-op: cc == prev (the standard
	// permits up to two duplicate packets, e.g. for retransmission).
	TransitionDuplicate
	// TransitionBreak is any other transition: a continuity gap.
	TransitionBreak
	// TransitionFirst is returned the first time a PID is observed; there
	// is no prior counter to compare against.
	TransitionFirst
)

// ContinuityTracker tracks the last continuity_counter observed per PID.
type ContinuityTracker struct {
	last map[uint16]byte
}

// NewContinuityTracker returns an empty tracker.
func NewContinuityTracker() *ContinuityTracker {
	return &ContinuityTracker{last: make(map[uint16]byte)}
}

// Check reports the Transition for the given pid/cc pair and records cc as
// the new last-seen value for pid, except when the transition is a
// TransitionBreak paired with the caller choosing to reset state
// (see Reset) -- Check itself always advances so that a resynchronised
// stream is tracked from its new baseline.
func (c *ContinuityTracker) Check(pid uint16, cc byte) Transition {
	prev, ok := c.last[pid]
	c.last[pid] = cc
	if !ok {
		return TransitionFirst
	}
	switch cc {
	case (prev + 1) & 0xf:
		return TransitionNext
	case prev:
		return TransitionDuplicate
	default:
		return TransitionBreak
	}
}

// Reset forgets the last continuity_counter seen for pid, so the next
// Check call reports TransitionFirst.
func (c *ContinuityTracker) Reset(pid uint16) {
	delete(c.last, pid)
}
