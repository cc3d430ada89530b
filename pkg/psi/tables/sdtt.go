/*
NAME
  sdtt.go - Software Download Trigger Table parser.

DESCRIPTION
  Implements spec.md §4.3's SDTT responsibility, grounded on
  original_source/src/tables/sdtt.{c,h}'s sdtt_parse/struct sdtt_contents.

  The source's sdtt_parse walks each content entry at a fixed 15-byte
  stride (`index = 15 * (i+1)`) and its schedule sub-loop at `index *
  (j+1)`, neither of which accounts for a content entry's actual encoded
  length (content_descriptor_length varies per entry) — both offsets are
  wrong for any SDTT carrying more than one content or more than one
  schedule entry. This parser instead tracks a running byte offset sized
  by each field actually read, per the decode style pkg/psi/tables.pmt.go
  and .nit.go already use for their own variable-length loops.

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

func downloadLevelText(level byte) string {
	switch level {
	case 0x01:
		return "Mandatory [0x01]"
	case 0x00:
		return "Optional [0x00]"
	default:
		return fmt.Sprintf("Unknown [%#02x]", level)
	}
}

func versionIndicatorText(vi byte) string {
	switch vi {
	case 0x00:
		return "All versions are considered valid [0x00]"
	case 0x01:
		return "The specified version or older versions are considered valid [0x01]"
	case 0x02:
		return "The specified version or newer versions are considered valid [0x02]"
	default:
		return "Only the specified version is considered valid [0x03]"
	}
}

func scheduleTimeShiftText(v byte) string {
	switch {
	case v == 0:
		return "The same download contents is transmitted in the same schedule with multiple service_ids [0x00]"
	case v >= 1 && v <= 12:
		return fmt.Sprintf("The same download contents is transmitted by shifting the time from 1 to 12 hours for each service_id with multiple service_ids [%#02x]", v)
	case v == 13 || v == 14:
		return fmt.Sprintf("Reserved [%#02x]", v)
	default:
		return "The download contents is transmitted with a unique service_id [0x0f]"
	}
}

// SDTTParser returns a psi.TableParser bound to env, implementing spec.md
// §4.3's SDTT responsibility.
func SDTTParser(env *Env) psi.TableParser {
	return func(pid uint16, section []byte) error {
		hdr, warnings, err := psi.ParseCommonHeader(section)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			env.Log.Log(logging.Warning, "SDTT header warning", "warning", w)
		}
		if hdr.SectionNumber != 0 || hdr.LastSectionNumber != 0 {
			env.Log.Log(logging.Warning, "SDTT section_number/last_section_number != 0", "pid", fmt.Sprintf("%#04x", pid))
		}

		tableInode := Inode(pid, hdr.TableID)
		dirName := fmt.Sprintf("%#04x", pid)
		td, err := env.tableDir(groupInodeSDTT, FSSDTTName, tableInode, dirName)
		if err != nil {
			return err
		}
		if !env.shouldInstall(tableInode, hdr.CurrentNextInd, hdr.VersionNumber) {
			return nil
		}

		body := hdr.Body(section)
		if len(body) < 7 {
			return ErrShortTable
		}
		makerID := byte(hdr.Identifier >> 8)
		modelID := byte(hdr.Identifier)
		transportStreamID := uint16(body[0])<<8 | uint16(body[1])
		originalNetworkID := uint16(body[2])<<8 | uint16(body[3])
		serviceID := uint16(body[4])<<8 | uint16(body[5])
		numContents := body[6]

		verInode := env.versionInode(tableInode, hdr.VersionNumber)
		verDir, err := td.CreateVersionDir(verInode, hdr.VersionNumber)
		if err != nil {
			return err
		}
		headerFields := map[string]string{
			"maker_id":            fmt.Sprintf("%#02x", makerID),
			"model_id":            fmt.Sprintf("%#02x", modelID),
			"transport_stream_id": fmt.Sprintf("%#04x", transportStreamID),
			"original_network_id": fmt.Sprintf("%#04x", originalNetworkID),
			"service_id":          fmt.Sprintf("%#04x", serviceID),
			"num_of_contents":     fmt.Sprintf("%d", numContents),
		}
		for _, name := range []string{"maker_id", "model_id", "transport_stream_id", "original_network_id", "service_id", "num_of_contents"} {
			if _, err := env.Tree.CreateFile(verDir, env.nextAux(), name, []byte(headerFields[name])); err != nil {
				return err
			}
		}

		off := 7
		for i := 0; i < int(numContents); i++ {
			if off+8 > len(body) {
				return ErrShortTable
			}
			group := body[off] >> 4
			targetVersion := (uint16(body[off])<<8 | uint16(body[off+1])) & 0x0fff
			newVersion := (uint16(body[off+2])<<8 | uint16(body[off+3])) >> 4
			downloadLevel := body[off+3] >> 2 & 0x03
			versionIndicator := body[off+3] & 0x03
			contentDescLen := (uint16(body[off+4])<<8 | uint16(body[off+5])) >> 4
			scheduleDescLen := (uint16(body[off+6])<<8 | uint16(body[off+7])) >> 4
			scheduleTimeShift := body[off+7] & 0x0f

			contentStart := off + 8
			contentEnd := contentStart + int(contentDescLen)
			if contentEnd > len(body) {
				return ErrShortTable
			}
			scheduleEnd := contentStart + int(scheduleDescLen)
			if scheduleEnd > contentEnd {
				return ErrShortTable
			}

			subdir, err := env.Tree.CreateDirectory(verDir, env.nextAux(), fmt.Sprintf("%02d", i+1))
			if err != nil {
				return err
			}
			numFields := map[string]string{
				"group":                         fmt.Sprintf("%d", group),
				"target_version":                fmt.Sprintf("%#03x", targetVersion),
				"new_version":                   fmt.Sprintf("%#03x", newVersion),
				"download_level":                fmt.Sprintf("%d", downloadLevel),
				"content_descriptor_length":      fmt.Sprintf("%d", contentDescLen),
				"schedule_descriptor_length":     fmt.Sprintf("%d", scheduleDescLen),
			}
			for _, name := range []string{"group", "target_version", "new_version", "download_level", "content_descriptor_length", "schedule_descriptor_length"} {
				if _, err := env.Tree.CreateFile(subdir, env.nextAux(), name, []byte(numFields[name])); err != nil {
					return err
				}
			}
			if _, err := env.Tree.CreateFile(subdir, env.nextAux(), "download_level_text", []byte(downloadLevelText(downloadLevel))); err != nil {
				return err
			}
			if _, err := env.Tree.CreateFile(subdir, env.nextAux(), "version_indicator", []byte(versionIndicatorText(versionIndicator))); err != nil {
				return err
			}
			if _, err := env.Tree.CreateFile(subdir, env.nextAux(), "schedule_time_shift_information", []byte(scheduleTimeShiftText(scheduleTimeShift))); err != nil {
				return err
			}

			schedOff := contentStart
			entryNum := 0
			for schedOff+8 <= scheduleEnd {
				entryNum++
				startTime, err := psi.Uint40(body, schedOff)
				if err != nil {
					return ErrShortTable
				}
				duration, err := psi.Uint24(body, schedOff+5)
				if err != nil {
					return ErrShortTable
				}
				schedDir, err := env.Tree.CreateDirectory(subdir, env.nextAux(), fmt.Sprintf("sched_%02d", entryNum))
				if err != nil {
					return err
				}
				if _, err := env.Tree.CreateFile(schedDir, env.nextAux(), "start_time", []byte(fmt.Sprintf("%#010x", startTime))); err != nil {
					return err
				}
				if _, err := env.Tree.CreateFile(schedDir, env.nextAux(), "duration", []byte(fmt.Sprintf("%#06x", duration))); err != nil {
					return err
				}
				schedOff += 8
			}

			if contentEnd > scheduleEnd {
				if _, err := env.Descriptors.Parse(body[scheduleEnd:contentEnd], subdir, nil); err != nil {
					env.Log.Log(logging.Warning, "SDTT content descriptor parse failed", "err", err)
				}
			}

			off = contentEnd
		}

		if err := td.InstallVersion(tableInode, verDir); err != nil {
			return err
		}
		env.markInstalled(tableInode, hdr.VersionNumber)
		return nil
	}
}
