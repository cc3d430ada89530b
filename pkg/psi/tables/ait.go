/*
NAME
  ait.go - Application Information Table parser.

DESCRIPTION
  Implements spec.md §4.3's AIT responsibility, grounded on
  original_source/src/dsm-cc/ait.{c,h}'s ait_parse/struct ait_table/struct
  ait_data.

  The source bounds both its common-descriptor loop and its application
  loop by comparing an absolute running index against
  application_loop_length, which is itself a *relative* length field (the
  byte count remaining after the field itself) — the same class of
  off-by-base bug as sdtt.c's fixed stride (see sdtt.go). This parser
  computes each loop's end as (offset-of-length-field's-end + length)
  instead, the way pmt.go/nit.go/sdt.go already track every other
  variable-length loop here.

  AIT descriptor tag internals (Application descriptor, Application name
  descriptor, transport protocol descriptor, ...) are an external
  collaborator's concern per the registration/invocation contract
  pkg/descriptor exposes; this parser only walks the loop shape and hands
  each span to Env.DSMCCDesc, exactly as the PMT/NIT/SDT parsers do for
  their own descriptor loops via Env.Descriptors.

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

// AITParser returns a psi.TableParser bound to env, implementing spec.md
// §4.3's AIT responsibility.
func AITParser(env *Env) psi.TableParser {
	return func(pid uint16, section []byte) error {
		hdr, warnings, err := psi.ParseCommonHeader(section)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			env.Log.Log(logging.Warning, "AIT header warning", "warning", w)
		}

		tableInode := Inode(pid, hdr.TableID)
		td, err := env.tableDir(groupInodeAIT, FSAITName, tableInode, "")
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
		commonDescLen := (uint16(body[0])<<8 | uint16(body[1])) & 0x0fff
		off := 2
		commonDescEnd := off + int(commonDescLen)
		if commonDescEnd > len(body) {
			return ErrShortTable
		}

		verInode := env.versionInode(tableInode, hdr.VersionNumber)
		verDir, err := td.CreateVersionDir(verInode, hdr.VersionNumber)
		if err != nil {
			return err
		}
		if _, err := env.Tree.CreateFile(verDir, env.nextAux(), "common_descriptors_length", []byte(fmt.Sprintf("%d", commonDescLen))); err != nil {
			return err
		}
		if commonDescLen > 0 {
			if _, err := env.DSMCCDesc.Parse(body[off:commonDescEnd], verDir, nil); err != nil {
				env.Log.Log(logging.Warning, "AIT common descriptor parse failed", "err", err)
			}
		}
		off = commonDescEnd

		if off+2 > len(body) {
			return ErrShortTable
		}
		appLoopLen := (uint16(body[off])<<8 | uint16(body[off+1])) & 0x0fff
		off += 2
		if _, err := env.Tree.CreateFile(verDir, env.nextAux(), "application_loop_length", []byte(fmt.Sprintf("%d", appLoopLen))); err != nil {
			return err
		}

		appLoopEnd := off + int(appLoopLen)
		if appLoopEnd > len(body) {
			return ErrShortTable
		}

		for i := 1; off+9 <= appLoopEnd; i++ {
			orgID, err := psi.Uint32(body, off)
			if err != nil {
				return ErrShortTable
			}
			appID := uint16(body[off+4])<<8 | uint16(body[off+5])
			controlCode := body[off+6]
			descLoopLen := (uint16(body[off+7])<<8 | uint16(body[off+8])) & 0x0fff
			entryStart := off + 9
			entryEnd := entryStart + int(descLoopLen)
			if entryEnd > appLoopEnd {
				return ErrShortTable
			}

			appDir, err := env.Tree.CreateDirectory(verDir, env.nextAux(), fmt.Sprintf("Application_%02d", i))
			if err != nil {
				return err
			}
			fields := map[string]string{
				"organization_id":                     fmt.Sprintf("%#08x", orgID),
				"application_id":                       fmt.Sprintf("%#04x", appID),
				"application_control_code":             fmt.Sprintf("%#02x", controlCode),
				"application_descriptors_loop_length": fmt.Sprintf("%d", descLoopLen),
			}
			for _, name := range []string{"organization_id", "application_id", "application_control_code", "application_descriptors_loop_length"} {
				if _, err := env.Tree.CreateFile(appDir, env.nextAux(), name, []byte(fields[name])); err != nil {
					return err
				}
			}
			if descLoopLen > 0 {
				if _, err := env.DSMCCDesc.Parse(body[entryStart:entryEnd], appDir, nil); err != nil {
					env.Log.Log(logging.Warning, "AIT application descriptor parse failed", "application_id", fmt.Sprintf("%#04x", appID), "err", err)
				}
			}
			off = entryEnd
		}

		if err := td.InstallVersion(tableInode, verDir); err != nil {
			return err
		}
		env.markInstalled(tableInode, hdr.VersionNumber)
		return nil
	}
}
