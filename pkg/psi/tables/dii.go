/*
NAME
  dii.go - Download Info Indication parser, and DII/DSI message dispatch.

DESCRIPTION
  Implements spec.md §4.3's DII responsibility, grounded on
  original_source/src/dsm-cc/dii.{c,h}'s dii_parse/struct dii_table/struct
  dii_module.

  DII and DSI share table_id 0x3B and arrive on the same elementary stream;
  they are told apart only after the DSM-CC message header has been read,
  by its message_id field. pkg/psi.Registry dispatches purely on (pid,
  table_id) (see pkg/psi/registry.go's Dispatch), so there is nowhere to
  register two separate psi.TableParsers for the same table_id. DIIParser
  is therefore the single entry point registered for table_id 0x3B,
  mirroring dii_parse's own message_id == 0x1006 delegation to dsi_parse at
  dii.c's top.

  The deep BIOP/IOP::IOR object-carousel model a module's info/private_data
  may encode belongs to pkg/dsmcc (per spec.md's carousel-engine module
  boundary); this parser materialises only the table-shape fields spec.md
  §4.3 names, leaving module payload bytes for pkg/dsmcc to consume from
  the module directories this parser creates.

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

// diiSpecificHeaderLen is the byte size of the DII-specific fields
// (download_id, block_size, window_size, ack_period,
// t_c_download_window, t_c_download_scenario) following the DSM-CC
// message header.
const diiSpecificHeaderLen = 16

// DIIParser returns a psi.TableParser bound to env, registered for
// table_id 0x3B. It decodes the DSM-CC message header shared by DII and
// DSI sections and dispatches to the appropriate field layout by
// message_id.
func DIIParser(env *Env) psi.TableParser {
	return func(pid uint16, section []byte) error {
		hdr, warnings, err := psi.ParseCommonHeader(section)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			env.Log.Log(logging.Warning, "DII/DSI header warning", "warning", w)
		}

		body := hdr.Body(section)
		msgHdr, off, err := parseDSMCCMessageHeader(body, 0)
		if err != nil {
			return err
		}
		if msgHdr.ProtocolDiscriminator != protocolDiscriminatorUN || msgHdr.DSMCCType != dsmccTypeUN {
			env.Log.Log(logging.Warning, "DSM-CC message is not a U-N message, ignoring",
				"pid", fmt.Sprintf("%#04x", pid), "protocol_discriminator", msgHdr.ProtocolDiscriminator, "dsmcc_type", msgHdr.DSMCCType)
			return nil
		}

		switch msgHdr.MessageID {
		case messageIDDSI:
			return parseDSI(env, pid, hdr, body, off, msgHdr)
		case messageIDDII:
			return parseDII(env, pid, hdr, body, off, msgHdr)
		default:
			env.Log.Log(logging.Warning, "unrecognised DSM-CC message_id", "pid", fmt.Sprintf("%#04x", pid), "message_id", fmt.Sprintf("%#06x", msgHdr.MessageID))
			return nil
		}
	}
}

// parseDII decodes a DII section's fields beyond the shared DSM-CC message
// header (already consumed up to off) and materialises its table-shape
// dentries.
func parseDII(env *Env, pid uint16, hdr psi.CommonHeader, body []byte, off int, msgHdr dsmccMessageHeader) error {
	tableInode := DIIInode(pid)
	dirName := fmt.Sprintf("%#04x", pid)
	td, err := env.tableDir(groupInodeDII, FSDIIName, tableInode, dirName)
	if err != nil {
		return err
	}
	if !env.shouldInstall(tableInode, hdr.CurrentNextInd, hdr.VersionNumber) {
		return nil
	}

	if off+diiSpecificHeaderLen > len(body) {
		return ErrShortTable
	}
	downloadID, err := psi.Uint32(body, off)
	if err != nil {
		return ErrShortTable
	}
	blockSize := uint16(body[off+4])<<8 | uint16(body[off+5])
	windowSize := body[off+6]
	ackPeriod := body[off+7]
	tCDownloadWindow, err := psi.Uint32(body, off+8)
	if err != nil {
		return ErrShortTable
	}
	tCDownloadScenario, err := psi.Uint32(body, off+12)
	if err != nil {
		return ErrShortTable
	}
	off += diiSpecificHeaderLen
	if blockSize == 0 {
		env.Log.Log(logging.Warning, "DII block_size is zero", "pid", fmt.Sprintf("%#04x", pid))
		return ErrShortTable
	}

	compatLen, next, err := skipCompatibilityDescriptor(body, off)
	if err != nil {
		return err
	}
	off = next

	if off+2 > len(body) {
		return ErrShortTable
	}
	numModules := uint16(body[off])<<8 | uint16(body[off+1])
	off += 2

	verInode := env.versionInode(tableInode, hdr.VersionNumber)
	verDir, err := td.CreateVersionDir(verInode, hdr.VersionNumber)
	if err != nil {
		return err
	}

	fields := map[string]string{
		"transaction_id":          fmt.Sprintf("%#010x", msgHdr.TransactionID),
		"download_id":             fmt.Sprintf("%#010x", downloadID),
		"block_size":              fmt.Sprintf("%d", blockSize),
		"window_size":              fmt.Sprintf("%d", windowSize),
		"ack_period":               fmt.Sprintf("%d", ackPeriod),
		"t_c_download_window":      fmt.Sprintf("%#010x", tCDownloadWindow),
		"t_c_download_scenario":    fmt.Sprintf("%#010x", tCDownloadScenario),
		"compatibility_descriptor_length": fmt.Sprintf("%d", compatLen),
		"number_of_modules":        fmt.Sprintf("%d", numModules),
	}
	for _, name := range []string{
		"transaction_id", "download_id", "block_size", "window_size", "ack_period",
		"t_c_download_window", "t_c_download_scenario", "compatibility_descriptor_length", "number_of_modules",
	} {
		if _, err := env.Tree.CreateFile(verDir, env.nextAux(), name, []byte(fields[name])); err != nil {
			return err
		}
	}

	for i := 0; i < int(numModules); i++ {
		if off+8 > len(body) {
			return ErrShortTable
		}
		moduleID := uint16(body[off])<<8 | uint16(body[off+1])
		moduleSize, err := psi.Uint32(body, off+2)
		if err != nil {
			return ErrShortTable
		}
		moduleVersion := body[off+6]
		infoLen := int(body[off+7])
		off += 8
		if off+infoLen > len(body) {
			return ErrShortTable
		}
		info := body[off : off+infoLen]
		off += infoLen

		modDir, err := env.Tree.CreateDirectory(verDir, env.nextAux(), fmt.Sprintf("module_%02d", i+1))
		if err != nil {
			return err
		}
		modFields := map[string]string{
			"module_id":      fmt.Sprintf("%#06x", moduleID),
			"module_size":    fmt.Sprintf("%d", moduleSize),
			"module_version": fmt.Sprintf("%d", moduleVersion),
		}
		for _, name := range []string{"module_id", "module_size", "module_version"} {
			if _, err := env.Tree.CreateFile(modDir, env.nextAux(), name, []byte(modFields[name])); err != nil {
				return err
			}
		}
		if _, err := env.Tree.CreateFile(modDir, env.nextAux(), "module_info", info); err != nil {
			return err
		}
	}

	if off+2 <= len(body) {
		privLen := uint16(body[off])<<8 | uint16(body[off+1])
		off += 2
		privEnd := off + int(privLen)
		if privEnd > len(body) {
			privEnd = len(body)
		}
		if _, err := env.Tree.CreateFile(verDir, env.nextAux(), "private_data", body[off:privEnd]); err != nil {
			return err
		}
	}

	if err := td.InstallVersion(tableInode, verDir); err != nil {
		return err
	}
	env.markInstalled(tableInode, hdr.VersionNumber)
	env.diiTransactions[msgHdr.TransactionID&^uint32(0x80000000)] = verDir
	return nil
}
