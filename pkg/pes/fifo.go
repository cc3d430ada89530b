/*
NAME
  fifo.go - buffered, non-blocking PES/ES delivery channel.

DESCRIPTION
  Replaces original_source/src/fifo.c's named-pipe-backed struct fifo with
  a buffered Go channel, per spec.md §5's "non-blocking writes, lazy-open
  writer, silent drop on absent reader" FIFO semantics and SPEC_FULL.md's
  direction to ground FIFO delivery on the teacher's revid pipeline
  fan-out style (revid/senders.go's `select { case <-s.done: ... default:
  }` non-blocking dispatch loop).

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package pes implements PES header decoding and the PES/ES FIFO
// reassembly/delivery layer of spec.md §4.5.
package pes

// DefaultFifoCapacity is the number of pending chunks a Fifo buffers
// before Append starts silently dropping, per spec.md §5's non-blocking
// delivery contract.
const DefaultFifoCapacity = 64

// Fifo is the buffered, non-blocking delivery channel bound to a PES or ES
// FIFO dentry's Priv field. A reader drains C(); a writer that outpaces
// the reader drops the newest chunk rather than blocking, mirroring
// fifo_append's behaviour against a reader-less named pipe.
type Fifo struct {
	ch chan []byte
}

// NewFifo constructs a Fifo with the given channel capacity.
func NewFifo(capacity int) *Fifo {
	if capacity <= 0 {
		capacity = DefaultFifoCapacity
	}
	return &Fifo{ch: make(chan []byte, capacity)}
}

// Append enqueues data for delivery, dropping it silently if the channel
// is full (no reader, or a reader too slow to keep up).
func (f *Fifo) Append(data []byte) {
	select {
	case f.ch <- data:
	default:
	}
}

// C returns the channel a reader drains delivered chunks from.
func (f *Fifo) C() <-chan []byte {
	return f.ch
}
