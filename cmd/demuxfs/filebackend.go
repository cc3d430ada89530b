/*
NAME
  filebackend.go - minimal file/FIFO input backend.

DESCRIPTION
  pkg/backend declares only the Backend contract; concrete backends are an
  external collaborator per spec.md's scope. cmd/demuxfs still needs one
  working backend to be a runnable program, so this file supplies the
  simplest possible case: reading packets from a plain file or named pipe,
  auto-detecting the packet size (188/204/208) from the first few packets
  via pkg/ts.DetectPacketSize.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package main

import (
	"bufio"
	"io"
	"os"

	"github.com/ausocean/demuxfs/pkg/ts"
	"github.com/pkg/errors"
)

// detectWindow is how many bytes fileBackend buffers up front to run
// ts.DetectPacketSize against (five 208-byte packets, the largest
// candidate size DetectPacketSize checks).
const detectWindow = ts.PacketSize208 * 5

// fileBackend implements backend.Backend by reading fixed-size TS packets
// from a plain file or named pipe.
type fileBackend struct {
	path string
	f    *os.File
	r    *bufio.Reader
	size int
}

func newFileBackend(path string) (*fileBackend, error) {
	if path == "" {
		return nil, errors.New("demuxfs: -input is required for the \"file\" backend")
	}
	return &fileBackend{path: path}, nil
}

func (b *fileBackend) Create() error {
	f, err := os.Open(b.path)
	if err != nil {
		return errors.Wrapf(err, "could not open %s", b.path)
	}
	b.f = f
	b.r = bufio.NewReaderSize(f, detectWindow)

	peek, err := b.r.Peek(detectWindow)
	if err != nil && err != io.EOF {
		f.Close()
		return errors.Wrap(err, "could not read enough of the input to detect packet size")
	}
	size, err := ts.DetectPacketSize(peek)
	if err != nil {
		f.Close()
		return errors.Wrap(err, "could not detect TS packet size")
	}
	b.size = size
	return nil
}

func (b *fileBackend) Destroy() error {
	if b.f == nil {
		return nil
	}
	return b.f.Close()
}

// Read fills buf with one packet's worth of bytes. At end of file it
// returns (0, nil) rather than an error, so exhausting a recorded
// multiplex is not fatal: pkg/demux's driver treats n == 0 as "no packet"
// and keeps polling Read until Stop is called.
func (b *fileBackend) Read(buf []byte) (int, error) {
	n, err := io.ReadFull(b.r, buf[:b.size])
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "file backend read failed")
	}
	return n, nil
}

// Process is a no-op: the file backend needs no per-packet bookkeeping.
func (b *fileBackend) Process() error { return nil }

// KeepAlive reports whether the file is open: a plain file has no
// liveness state to check beyond the fd itself.
func (b *fileBackend) KeepAlive() bool { return b.f != nil }

// newBackend resolves the -backend flag to a concrete backend.Backend.
// Only "file" is built in; anything else is a caller error, since every
// other backend (DVB tuner, GStreamer bin, ...) is an external
// collaborator per spec.md's scope.
func newBackend(kind, input string) (*fileBackend, error) {
	switch kind {
	case "file":
		return newFileBackend(input)
	default:
		return nil, errors.Errorf("unsupported backend %q (only \"file\" is built in)", kind)
	}
}
