/*
NAME
  ddb.go - Download Data Block parser.

DESCRIPTION
  Implements spec.md §4.3's DDB responsibility, grounded on
  original_source/src/dsm-cc/ddb.{c,h}'s ddb_parse/ddb_block_number_already_parsed.

  Unlike DII/DSI, a DDB section is framed by a
  dsmcc_download_data_header rather than a dsmcc_message_header: the
  fourth field is download_id rather than transaction_id, but the two
  headers share byte shape and offsets, so parseDSMCCMessageHeader is
  reused here (MessageID still means "message_id" under the download data
  header's own terminology).

  A DDB module's blocks accumulate under the table's single Current
  version directory instead of cycling through InstallVersion on every
  block the way other tables do: block_number restarts within a module
  whenever the module is redelivered, not when the table gains a new
  version_number (DDB sections, in fact, carry no version_number/
  current_next_indicator pair of their own beyond what psi.CommonHeader
  always decodes, so this mirrors TOT's "reuse the one version dir"
  design, see tot.go and DESIGN.md).

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
	"github.com/ausocean/demuxfs/pkg/tree"
)

// TableIDDDB is the table_id carried by Download Data Block sections.
const TableIDDDB = 0x3C

const (
	dsmccTypeDownloadDataBlock  = 0x03
	messageIDDownloadDataBlock  = 0x1003
	ddbSpecificHeaderLen        = 6 // module_id(2) + module_version(1) + reserved(1) + block_number(2)
)

// DDBParser returns a psi.TableParser bound to env, implementing spec.md
// §4.3's DDB responsibility.
func DDBParser(env *Env) psi.TableParser {
	return func(pid uint16, section []byte) error {
		hdr, _, err := psi.ParseCommonHeader(section)
		if err != nil {
			return err
		}
		if !hdr.CurrentNextInd {
			return nil
		}

		body := hdr.Body(section)
		dataHdr, off, err := parseDSMCCMessageHeader(body, 0)
		if err != nil {
			return err
		}
		if dataHdr.DSMCCType != dsmccTypeDownloadDataBlock || dataHdr.MessageID != messageIDDownloadDataBlock {
			return nil
		}
		if dataHdr.MessageLength < 5 {
			return nil
		}

		if off+ddbSpecificHeaderLen > len(body) {
			return ErrShortTable
		}
		moduleID := uint16(body[off])<<8 | uint16(body[off+1])
		blockNumber := uint16(body[off+4])<<8 | uint16(body[off+5])
		blockStart := off + ddbSpecificHeaderLen
		if blockStart > len(body) {
			return ErrShortTable
		}
		blockData := body[blockStart:]
		if len(blockData) == 0 {
			return nil
		}

		tableInode := Inode(pid, hdr.TableID)
		dirName := fmt.Sprintf("%#04x", pid)
		td, err := env.tableDir(groupInodeDDB, FSDDBName, tableInode, dirName)
		if err != nil {
			return err
		}

		var verDir *tree.Dentry
		if current, ok := td.Current(); ok {
			verDir = current
		} else {
			verDir, err = td.CreateVersionDir(env.versionInode(tableInode, 0), 0)
			if err != nil {
				return err
			}
			if err := td.InstallVersion(tableInode, verDir); err != nil {
				return err
			}
		}

		modName := fmt.Sprintf("module_%02d", moduleID)
		modDir, ok := verDir.ChildByName(modName)
		if !ok {
			modDir, err = env.Tree.CreateDirectory(verDir, env.nextAux(), modName)
			if err != nil {
				return err
			}
		}

		blockName := fmt.Sprintf("block_%02d.bin", blockNumber)
		if _, exists := modDir.ChildByName(blockName); exists {
			return nil
		}
		if _, err := env.Tree.CreateFile(modDir, env.nextAux(), blockName, blockData); err != nil {
			return err
		}
		if env.Carousel != nil {
			env.Carousel.FeedDDB(pid, verDir)
		}
		return nil
	}
}
