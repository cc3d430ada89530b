/*
NAME
  pat.go - Program Association Table parser.

DESCRIPTION
  Implements spec.md §4.3's PAT responsibility, grounded on
  original_source/src/tables/pat.c's pat_parse/pat_populate.

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
	"github.com/pkg/errors"
)

// ErrShortTable is returned when a table-specific body is shorter than its
// minimal fixed prefix, corresponding to spec.md §7's ShortPayload kind.
var ErrShortTable = errors.New("tables: short table body")

// Well-known tree names, per spec.md §6.
const (
	FSPATName      = "PAT"
	FSPMTName      = "PMT"
	FSNITName      = "NIT"
	FSSDTName      = "SDT"
	FSEITName      = "EIT"
	FSSDTTName     = "SDTT"
	FSTOTName      = "TOT"
	FSAITName      = "AIT"
	FSDIIName      = "DII"
	FSDSIName      = "DSI"
	FSDDBName      = "DDB"
	FSStreamsName  = "Streams"
	FSProgramsName = "Programs"
	FSCurrentName  = "Current"
)

// ProgramEntry is one (program_number, pid) pair of a parsed PAT.
type ProgramEntry struct {
	ProgramNumber uint16
	PID           uint16
}

// PATParser returns a psi.TableParser bound to env, implementing spec.md
// §4.3's PAT responsibility: register the NIT parser on program 0's PID,
// register a PMT parser on every other program's PID, and create the
// Programs/<n> symlink index.
func PATParser(env *Env) psi.TableParser {
	return func(pid uint16, section []byte) error {
		hdr, warnings, err := psi.ParseCommonHeader(section)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			env.Log.Log(logging.Warning, "PAT header warning", "warning", w)
		}

		tableInode := Inode(pid, hdr.TableID)
		td, err := env.tableDir(groupInodePAT, FSPATName, tableInode, "")
		if err != nil {
			return err
		}
		if !env.shouldInstall(tableInode, hdr.CurrentNextInd, hdr.VersionNumber) {
			return nil
		}

		body := hdr.Body(section)
		if len(body)%4 != 0 {
			return ErrShortTable
		}
		programs := make([]ProgramEntry, 0, len(body)/4)
		for off := 0; off+4 <= len(body); off += 4 {
			programNumber, _ := psi.Uint16(body, off)
			pidField, _ := psi.Uint16(body, off+2)
			programs = append(programs, ProgramEntry{
				ProgramNumber: programNumber,
				PID:           pidField & 0x1fff,
			})
		}

		verInode := env.versionInode(tableInode, hdr.VersionNumber)
		verDir, err := td.CreateVersionDir(verInode, hdr.VersionNumber)
		if err != nil {
			return err
		}
		programsDir, err := env.Tree.CreateDirectory(verDir, env.nextAux(), FSProgramsName)
		if err != nil {
			return err
		}

		for _, p := range programs {
			env.patPrograms[p.ProgramNumber] = p.PID
			symInode := env.nextAux()
			name := fmt.Sprintf("%#04x", p.ProgramNumber)
			if p.ProgramNumber == 0 {
				if _, err := env.Tree.CreateSymlink(programsDir, symInode, name, "../../"+FSNITName); err != nil {
					return err
				}
			} else {
				target := fmt.Sprintf("../../%s/%#04x", FSPMTName, p.PID)
				if _, err := env.Tree.CreateSymlink(programsDir, symInode, name, target); err != nil {
					return err
				}
			}
			env.Registrar.RegisterPSIPID(p.PID)
		}

		if err := td.InstallVersion(tableInode, verDir); err != nil {
			return err
		}
		env.markInstalled(tableInode, hdr.VersionNumber)
		return nil
	}
}
