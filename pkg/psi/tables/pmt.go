/*
NAME
  pmt.go - Program Map Table parser.

DESCRIPTION
  Implements spec.md §4.3's PMT responsibility, grounded on
  original_source/src/tables/pmt.c's pmt_parse/pmt_populate_stream_dir.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package tables

import (
	"fmt"

	"github.com/ausocean/demuxfs/pkg/logging"
	"github.com/ausocean/demuxfs/pkg/psi"
	"github.com/ausocean/demuxfs/pkg/tree"
)

// StreamEntry is one elementary stream announced by a PMT.
type StreamEntry struct {
	StreamType byte
	PID        uint16
	Info       []byte // ES_info descriptor loop, raw.
}

// streamIdentifierTag is the descriptor_tag of the stream_identifier_descriptor
// (tag 0x52), whose payload's first byte is the component_tag.
const streamIdentifierTag = 0x52

// componentTagFromInfo scans a raw ES_info descriptor loop for a
// stream_identifier_descriptor and returns its component_tag, mirroring
// original_source/src/tables/pmt.c's direct byte peek rather than a full
// descriptor decode (descriptor-tag parser internals are an external
// collaborator here; only the registration/invocation shape is ours).
func componentTagFromInfo(info []byte) (tag byte, ok bool) {
	off := 0
	for off+2 <= len(info) {
		dtag := info[off]
		length := int(info[off+1])
		if off+2+length > len(info) {
			return 0, false
		}
		if dtag == streamIdentifierTag && length >= 1 {
			return info[off+2], true
		}
		off += 2 + length
	}
	return 0, false
}

// PMTParser returns a psi.TableParser bound to env, implementing spec.md
// §4.3's PMT responsibility.
func PMTParser(env *Env) psi.TableParser {
	return func(pid uint16, section []byte) error {
		hdr, warnings, err := psi.ParseCommonHeader(section)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			env.Log.Log(logging.Warning, "PMT header warning", "warning", w)
		}
		if hdr.SectionNumber != 0 || hdr.LastSectionNumber != 0 {
			env.Log.Log(logging.Warning, "PMT section_number/last_section_number != 0", "pid", fmt.Sprintf("%#04x", pid))
		}

		tableInode := Inode(pid, hdr.TableID)
		dirName := fmt.Sprintf("%#04x", pid)
		td, err := env.tableDir(groupInodePMT, FSPMTName, tableInode, dirName)
		if err != nil {
			return err
		}
		if !env.shouldInstall(tableInode, hdr.CurrentNextInd, hdr.VersionNumber) {
			return nil
		}

		body := hdr.Body(section)
		if len(body) < 4 {
			return ErrShortTable
		}
		pcrPID := (uint16(body[0])<<8 | uint16(body[1])) & 0x1fff
		programInfoLength := (uint16(body[2])<<8 | uint16(body[3])) & 0x0fff
		off := 4 + int(programInfoLength)
		if off > len(body) {
			return ErrShortTable
		}

		var streams []StreamEntry
		for off+5 <= len(body) {
			streamType := body[off]
			esPID := (uint16(body[off+1])<<8 | uint16(body[off+2])) & 0x1fff
			esInfoLength := (uint16(body[off+3])<<8 | uint16(body[off+4])) & 0x0fff
			start := off + 5
			end := start + int(esInfoLength)
			if end > len(body) {
				return ErrShortTable
			}
			streams = append(streams, StreamEntry{
				StreamType: streamType,
				PID:        esPID,
				Info:       body[start:end],
			})
			off = end
		}

		verInode := env.versionInode(tableInode, hdr.VersionNumber)
		verDir, err := td.CreateVersionDir(verInode, hdr.VersionNumber)
		if err != nil {
			return err
		}
		if _, err := env.Tree.CreateFile(verDir, env.nextAux(), "pcr_pid", []byte(fmt.Sprintf("%#04x", pcrPID))); err != nil {
			return err
		}
		if _, err := env.Tree.CreateFile(verDir, env.nextAux(), "program_information_length", []byte(fmt.Sprintf("%d", programInfoLength))); err != nil {
			return err
		}

		streamsByPID, err := env.Tree.CreateDirectory(env.Tree.Root, groupInodeStreams, FSStreamsName)
		if err != nil {
			return err
		}

		for _, s := range streams {
			class := classifyStreamType(s.StreamType)
			primary := false
			if tag, ok := componentTagFromInfo(s.Info); ok {
				if c, p := componentTagClass(tag); c != StreamsOther {
					class = c
					primary = p
				}
			}

			classDir, err := env.Tree.CreateDirectory(verDir, env.nextAux(), class)
			if err != nil {
				return err
			}
			pidName := fmt.Sprintf("%#04x", s.PID)
			streamDir, err := env.Tree.CreateDirectory(classDir, env.nextAux(), pidName)
			if err != nil {
				return err
			}
			if primary {
				if _, err := env.Tree.CreateSymlink(classDir, env.nextAux(), "Primary", pidName); err != nil {
					return err
				}
			}

			if err := env.linkStreamsIndex(streamsByPID, s.PID, streamDir); err != nil {
				return err
			}

			if err := env.wirePESStream(streamDir, s.PID, s.StreamType); err != nil {
				return err
			}

			if isCarouselClass(class) {
				env.Registrar.RegisterPSIPID(s.PID)
				// The DDB table directory itself is created lazily by the
				// DDB parser on first block; the symlink target below only
				// needs to resolve once that happens.
				if _, err := env.Tree.CreateSymlink(streamDir, env.nextAux(), "BIOP", fmt.Sprintf("../../../../../%s/%s/%s", FSDDBName, pidName, FSCurrentName)); err != nil {
					return err
				}
			}
		}

		if err := td.InstallVersion(tableInode, verDir); err != nil {
			return err
		}
		env.markInstalled(tableInode, hdr.VersionNumber)
		return nil
	}
}

// linkStreamsIndex creates (or replaces) the flat /Streams/<pid> symlink
// pointing at streamDir, per spec.md §4.3's PMT responsibility.
func (e *Env) linkStreamsIndex(streamsRoot *tree.Dentry, pid uint16, streamDir *tree.Dentry) error {
	name := fmt.Sprintf("%#04x", pid)
	_, err := e.Tree.CreateSymlink(streamsRoot, e.nextAux(), name, pathRelativeToStreams(streamDir))
	return err
}

// pathRelativeToStreams builds a symlink target from /Streams/<pid> to
// streamDir by walking up through streamDir's ancestry to the tree root.
func pathRelativeToStreams(streamDir *tree.Dentry) string {
	var names []string
	for d := streamDir; d != nil && d.Parent() != nil; d = d.Parent() {
		names = append([]string{d.Name}, names...)
	}
	path := "../"
	for _, n := range names {
		path += n + "/"
	}
	return path[:len(path)-1]
}

// wirePESStream creates the pes/es FIFOs and registers a PES sink on the
// stream's ES PID, per spec.md §4.3's PMT responsibility. es is only
// created when PES parsing is enabled (spec.md §6's parse_pes option).
func (e *Env) wirePESStream(streamDir *tree.Dentry, pid uint16, streamType byte) error {
	fifoKind := tree.FIFOAudio
	if classifyStreamType(streamType) == StreamsVideo {
		fifoKind = tree.FIFOVideo
	}
	pesFIFO, err := e.Tree.CreateFIFO(streamDir, e.nextAux(), "pes", fifoKind, nil)
	if err != nil {
		return err
	}
	var esFIFO *tree.Dentry
	if e.ParsePES {
		esFIFO, err = e.Tree.CreateFIFO(streamDir, e.nextAux(), "es", fifoKind, nil)
		if err != nil {
			return err
		}
	}
	if e.PES != nil {
		e.PES.BindStream(pid, streamType, pesFIFO, esFIFO)
		e.Registrar.RegisterPESPID(pid, e.PES)
	}
	return nil
}
