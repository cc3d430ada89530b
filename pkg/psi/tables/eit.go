/*
NAME
  eit.go - Event Information Table parser.

DESCRIPTION
  Implements spec.md §4.3's EIT responsibility, grounded on
  original_source/src/tables/eit.{c,h}'s eit_parse/struct eit_table/struct
  eit_event.

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
)

// EITParser returns a psi.TableParser bound to env, implementing spec.md
// §4.3's EIT responsibility: one Event_<event_id> directory per event
// entry, under a per-PID table directory (a broadcast typically carries
// several distinct EIT table_ids, 0x4E-0x6F, all multiplexed onto the same
// PID and sharing one version lifecycle here).
func EITParser(env *Env) psi.TableParser {
	return func(pid uint16, section []byte) error {
		hdr, warnings, err := psi.ParseCommonHeader(section)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			env.Log.Log(logging.Warning, "EIT header warning", "warning", w)
		}

		tableInode := Inode(pid, hdr.TableID)
		dirName := fmt.Sprintf("%#04x", pid)
		td, err := env.tableDir(groupInodeEIT, FSEITName, tableInode, dirName)
		if err != nil {
			return err
		}
		if !env.shouldInstall(tableInode, hdr.CurrentNextInd, hdr.VersionNumber) {
			return nil
		}

		body := hdr.Body(section)
		if len(body) < 6 {
			return ErrShortTable
		}
		transportStreamID := uint16(body[0])<<8 | uint16(body[1])
		originalNetworkID := uint16(body[2])<<8 | uint16(body[3])
		segmentLastSectionNumber := body[4]
		lastTableID := body[5]

		verInode := env.versionInode(tableInode, hdr.VersionNumber)
		verDir, err := td.CreateVersionDir(verInode, hdr.VersionNumber)
		if err != nil {
			return err
		}
		headerFields := map[string]string{
			"transport_stream_id":         fmt.Sprintf("%#04x", transportStreamID),
			"original_network_id":         fmt.Sprintf("%#04x", originalNetworkID),
			"segment_last_section_number": fmt.Sprintf("%d", segmentLastSectionNumber),
			"last_table_id":               fmt.Sprintf("%#02x", lastTableID),
		}
		for _, name := range []string{"transport_stream_id", "original_network_id", "segment_last_section_number", "last_table_id"} {
			if _, err := env.Tree.CreateFile(verDir, env.nextAux(), name, []byte(headerFields[name])); err != nil {
				return err
			}
		}

		off := 6
		for off+12 <= len(body) {
			eventID := uint16(body[off])<<8 | uint16(body[off+1])
			startTime, err := psi.Uint40(body, off+2)
			if err != nil {
				return ErrShortTable
			}
			duration, err := psi.Uint24(body, off+7)
			if err != nil {
				return ErrShortTable
			}
			runningStatus := body[off+10] >> 5
			freeCAMode := body[off+10] >> 4 & 0x01
			descLoopLen := (uint16(body[off+10])<<8 | uint16(body[off+11])) & 0x0fff
			descStart := off + 12
			descEnd := descStart + int(descLoopLen)
			if descEnd > len(body) {
				return ErrShortTable
			}

			evDir, err := env.Tree.CreateDirectory(verDir, env.nextAux(), fmt.Sprintf("Event_%#06x", eventID))
			if err != nil {
				return err
			}
			fields := map[string]string{
				"event_id":       fmt.Sprintf("%#06x", eventID),
				"start_time":     fmt.Sprintf("%#010x", startTime),
				"duration":       fmt.Sprintf("%#08x", duration),
				"running_status": fmt.Sprintf("%d", runningStatus),
				"free_ca_mode":   fmt.Sprintf("%d", freeCAMode),
			}
			for _, name := range []string{"event_id", "start_time", "duration", "running_status", "free_ca_mode"} {
				if _, err := env.Tree.CreateFile(evDir, env.nextAux(), name, []byte(fields[name])); err != nil {
					return err
				}
			}

			if descLoopLen > 0 {
				if _, err := env.Descriptors.Parse(body[descStart:descEnd], evDir, nil); err != nil {
					env.Log.Log(logging.Warning, "EIT event descriptor parse failed", "event_id", fmt.Sprintf("%#06x", eventID), "err", err)
				}
			}
			off = descEnd
		}

		if err := td.InstallVersion(tableInode, verDir); err != nil {
			return err
		}
		env.markInstalled(tableInode, hdr.VersionNumber)
		return nil
	}
}
