/*
NAME
  sdt.go - Service Description Table parser.

DESCRIPTION
  Implements spec.md §4.3's SDT responsibility, grounded on
  original_source/src/tables/sdt.c's sdt_parse.

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

// SDTParser returns a psi.TableParser bound to env, implementing spec.md
// §4.3's SDT responsibility: one Service_<n> directory per service, with
// a warning when a service_id is not announced by any PAT program seen so
// far.
func SDTParser(env *Env) psi.TableParser {
	return func(pid uint16, section []byte) error {
		hdr, warnings, err := psi.ParseCommonHeader(section)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			env.Log.Log(logging.Warning, "SDT header warning", "warning", w)
		}

		tableInode := Inode(pid, hdr.TableID)
		td, err := env.tableDir(groupInodeSDT, FSSDTName, tableInode, "")
		if err != nil {
			return err
		}
		if !env.shouldInstall(tableInode, hdr.CurrentNextInd, hdr.VersionNumber) {
			return nil
		}

		body := hdr.Body(section)
		if len(body) < 3 {
			return ErrShortTable
		}
		originalNetworkID := uint16(body[0])<<8 | uint16(body[1])

		verInode := env.versionInode(tableInode, hdr.VersionNumber)
		verDir, err := td.CreateVersionDir(verInode, hdr.VersionNumber)
		if err != nil {
			return err
		}
		if _, err := env.Tree.CreateFile(verDir, env.nextAux(), "original_network_id", []byte(fmt.Sprintf("%#04x", originalNetworkID))); err != nil {
			return err
		}

		off := 3
		serviceNum := 0
		for off+5 <= len(body) {
			serviceID := uint16(body[off])<<8 | uint16(body[off+1])
			eitSchedule := body[off+2]>>1&0x01 != 0
			eitPresentFollowing := body[off+2]&0x01 != 0
			runningStatus := body[off+3] >> 5
			freeCAMode := body[off+3] >> 4 & 0x01
			descLoopLen := (uint16(body[off+3])<<8 | uint16(body[off+4])) & 0x0fff
			descStart := off + 5
			descEnd := descStart + int(descLoopLen)
			if descEnd > len(body) {
				return ErrShortTable
			}

			serviceNum++
			svcDir, err := env.Tree.CreateDirectory(verDir, env.nextAux(), fmt.Sprintf("Service_%02d", serviceNum))
			if err != nil {
				return err
			}
			fields := map[string]string{
				"service_id":                fmt.Sprintf("%#04x", serviceID),
				"eit_schedule_flag":         boolField(eitSchedule),
				"eit_present_following_flag": boolField(eitPresentFollowing),
				"running_status":            fmt.Sprintf("%d", runningStatus),
				"free_ca_mode":              fmt.Sprintf("%d", freeCAMode),
				"descriptors_loop_length":   fmt.Sprintf("%d", descLoopLen),
			}
			for _, name := range []string{"service_id", "eit_schedule_flag", "eit_present_following_flag", "running_status", "free_ca_mode", "descriptors_loop_length"} {
				if _, err := env.Tree.CreateFile(svcDir, env.nextAux(), name, []byte(fields[name])); err != nil {
					return err
				}
			}

			if _, ok := env.patPrograms[serviceID]; !ok {
				env.Log.Log(logging.Warning, "SDT service_id not declared by the PAT", "service_id", fmt.Sprintf("%#04x", serviceID))
			}

			if descLoopLen > 0 {
				if _, err := env.Descriptors.Parse(body[descStart:descEnd], svcDir, nil); err != nil {
					env.Log.Log(logging.Warning, "SDT service descriptor parse failed", "err", err)
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

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
