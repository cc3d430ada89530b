/*
NAME
  nit.go - Network Information Table parser.

DESCRIPTION
  Implements spec.md §4.3's NIT responsibility, grounded on
  original_source/src/tables/nit.c's nit_parse.

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

// NITParser returns a psi.TableParser bound to env, implementing spec.md
// §4.3's NIT responsibility: a TS_INFORMATION/<n>/ directory per
// transport stream loop entry, cross-checking original_network_id against
// the NIT's own identifier (network_id).
func NITParser(env *Env) psi.TableParser {
	return func(pid uint16, section []byte) error {
		hdr, warnings, err := psi.ParseCommonHeader(section)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			env.Log.Log(logging.Warning, "NIT header warning", "warning", w)
		}

		tableInode := Inode(pid, hdr.TableID)
		td, err := env.tableDir(groupInodeNIT, FSNITName, tableInode, "")
		if err != nil {
			return err
		}
		if !env.shouldInstall(tableInode, hdr.CurrentNextInd, hdr.VersionNumber) {
			return nil
		}

		body := hdr.Body(section)
		if len(body) < 2 {
			return ErrShortTable
		}
		netDescLen := (uint16(body[0])<<8 | uint16(body[1])) & 0x0fff
		off := 2 + int(netDescLen)
		if off > len(body) {
			return ErrShortTable
		}

		verInode := env.versionInode(tableInode, hdr.VersionNumber)
		verDir, err := td.CreateVersionDir(verInode, hdr.VersionNumber)
		if err != nil {
			return err
		}
		if netDescLen > 0 {
			if _, err := env.Descriptors.Parse(body[2:2+netDescLen], verDir, nil); err != nil {
				env.Log.Log(logging.Warning, "NIT network descriptor parse failed", "err", err)
			}
		}

		if off+2 > len(body) {
			return ErrShortTable
		}
		tsLoopLen := (uint16(body[off])<<8 | uint16(body[off+1])) & 0x0fff
		off += 2

		tsInfoDir, err := env.Tree.CreateDirectory(verDir, env.nextAux(), "TS_INFORMATION")
		if err != nil {
			return err
		}

		end := off + int(tsLoopLen)
		if end > len(body) {
			return ErrShortTable
		}
		for i := 1; off+6 <= end; i++ {
			tsID := uint16(body[off])<<8 | uint16(body[off+1])
			origNetID := uint16(body[off+2])<<8 | uint16(body[off+3])
			descLen := (uint16(body[off+4])<<8 | uint16(body[off+5])) & 0x0fff
			descStart := off + 6
			descEnd := descStart + int(descLen)
			if descEnd > end {
				return ErrShortTable
			}

			infoDir, err := env.Tree.CreateDirectory(tsInfoDir, env.nextAux(), fmt.Sprintf("%02d", i))
			if err != nil {
				return err
			}
			if _, err := env.Tree.CreateFile(infoDir, env.nextAux(), "transport_stream_id", []byte(fmt.Sprintf("%#04x", tsID))); err != nil {
				return err
			}
			if _, err := env.Tree.CreateFile(infoDir, env.nextAux(), "original_network_id", []byte(fmt.Sprintf("%#04x", origNetID))); err != nil {
				return err
			}
			if origNetID != hdr.Identifier {
				env.Log.Log(logging.Warning, "NIT original_network_id != network_id", "original_network_id", origNetID, "network_id", hdr.Identifier)
			}
			if descLen > 0 {
				if _, err := env.Descriptors.Parse(body[descStart:descEnd], infoDir, nil); err != nil {
					env.Log.Log(logging.Warning, "NIT transport descriptor parse failed", "err", err)
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
