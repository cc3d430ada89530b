/*
NAME
  tot.go - Time Offset Table parser.

DESCRIPTION
  Implements spec.md §4.3's TOT responsibility, grounded on
  original_source/src/tables/tot.c's tot_parse and convert_string_from_utc.

  TOT departs from the common PSI header layout other tables share: it
  carries no identifier/version_number/current_next_indicator fields (it
  is a standing "current time" broadcast, not a versioned table), so this
  parser reads its fixed prefix directly instead of going through
  psi.ParseCommonHeader and the version-gating Env.shouldInstall uses
  elsewhere. Each TOT section simply overwrites the single Current
  subtree.

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

	"github.com/ausocean/demuxfs/pkg/psi"
)

const tableIDTOT = 0x73

// decodeUTC3 decodes the 40-bit JST/UTC-3 time field DVB/ARIB TOT carries:
// a 16-bit Modified Julian Date followed by 3 BCD-encoded hour/minute/
// second bytes, per ETSI EN 300 468 annex C.
func decodeUTC3(utc uint64) string {
	h1 := byte(utc>>20) & 0x0f
	h2 := byte(utc>>16) & 0x0f
	hh := h1*10 + h2
	m1 := byte(utc>>12) & 0x0f
	m2 := byte(utc>>8) & 0x0f
	mm := m1*10 + m2
	s1 := byte(utc>>4) & 0x0f
	s2 := byte(utc) & 0x0f
	ss := s1*10 + s2

	mjd := uint32(utc >> 24)
	var y, m, d uint32
	if mjd != 0 {
		yf := (float64(mjd) - 15078.2) / 365.25
		y = uint32(yf)
		mf := (float64(mjd) - 14956.1 - float64(uint32(float64(y)*365.25))) / 30.6001
		m = uint32(mf)
		d = mjd - 14956 - uint32(float64(y)*365.25) - uint32(float64(m)*30.6001)
		k := uint32(0)
		if m == 14 || m == 15 {
			k = 1
		}
		y += k
		if m > 13 {
			m = m - 1 - 12
		} else {
			m = m - 1
		}
	}
	year := 0
	if y != 0 {
		year = int(y) + 1900
	}
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", year, m, d, hh, mm, ss)
}

// TOTParser returns a psi.TableParser bound to env, implementing spec.md
// §4.3's TOT responsibility.
func TOTParser(env *Env) psi.TableParser {
	return func(pid uint16, section []byte) error {
		if len(section) < 3+5+2 {
			return ErrShortTable
		}
		tableID := section[0]
		utc, err := psi.Uint40(section, 3)
		if err != nil {
			return ErrShortTable
		}
		descLoopLen := (uint16(section[8])<<8 | uint16(section[9])) & 0x0fff
		descStart := 10
		descEnd := descStart + int(descLoopLen)
		if descEnd > len(section)-4 {
			return ErrShortTable
		}

		tableInode := Inode(pid, tableID)
		td, err := env.tableDir(groupInodeTOT, FSTOTName, tableInode, "")
		if err != nil {
			return err
		}

		verInode := env.nextAux()
		verDir, err := td.CreateVersionDir(verInode, 0)
		if err != nil {
			return err
		}
		if _, err := env.Tree.CreateFile(verDir, env.nextAux(), "utc3_time", []byte(decodeUTC3(utc))); err != nil {
			return err
		}
		if _, err := env.Tree.CreateFile(verDir, env.nextAux(), "utc3_time_raw", []byte(fmt.Sprintf("%#010x", utc))); err != nil {
			return err
		}
		if descLoopLen > 0 {
			if _, err := env.Descriptors.Parse(section[descStart:descEnd], verDir, nil); err != nil {
				return nil
			}
		}

		return td.InstallVersion(tableInode, verDir)
	}
}
