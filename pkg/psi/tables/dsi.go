/*
NAME
  dsi.go - Download Server Initiate parser.

DESCRIPTION
  Implements spec.md §4.3's DSI responsibility, grounded on
  original_source/src/dsm-cc/dsi.{c,h}'s dsi_parse/struct dsi_table. Reached
  from DIIParser (dii.go) when the shared DSM-CC message header's
  message_id is 0x1006, mirroring dii_parse's own delegation to dsi_parse.

  private_data here holds either a GroupInfoIndication (data carousel) or a
  BIOP::ServiceGatewayInformation/IOP::IOR (object carousel); telling the
  two apart and decoding either is pkg/dsmcc's concern (the carousel
  engine), so this parser stages the raw bytes on the version dentry for
  pkg/dsmcc to read rather than decoding them itself.

  A DSI is linked to its DII by transaction_id, per dsi_parse's
  _linked_to_dii flag and dsi_create_dii_symlink: the first DSI parse to
  observe a matching DII transaction creates a "DII" symlink in the DSI's
  version directory, and later re-parses of the same version do not
  recreate it.

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

// dsiServerIDLen is the byte size of a DSI's server_id field.
const dsiServerIDLen = 20

// parseDSI decodes a DSI section's fields beyond the shared DSM-CC message
// header (already consumed up to off) and materialises its table-shape
// dentries, linking to its DII when one is known.
func parseDSI(env *Env, pid uint16, hdr psi.CommonHeader, body []byte, off int, msgHdr dsmccMessageHeader) error {
	tableInode := DSIInode(pid)
	dirName := fmt.Sprintf("%#04x", pid)
	td, err := env.tableDir(groupInodeDSI, FSDSIName, tableInode, dirName)
	if err != nil {
		return err
	}
	if !env.shouldInstall(tableInode, hdr.CurrentNextInd, hdr.VersionNumber) {
		return nil
	}

	if off+dsiServerIDLen > len(body) {
		return ErrShortTable
	}
	serverID := body[off : off+dsiServerIDLen]
	off += dsiServerIDLen

	compatLen, next, err := skipCompatibilityDescriptor(body, off)
	if err != nil {
		return err
	}
	if compatLen != 0 {
		env.Log.Log(logging.Warning, "DSI compatibility_descriptor_length is non-zero", "pid", fmt.Sprintf("%#04x", pid), "length", compatLen)
	}
	off = next

	if off+2 > len(body) {
		return ErrShortTable
	}
	privLen := uint16(body[off])<<8 | uint16(body[off+1])
	off += 2
	// The source corrects private_data_length against the bytes actually
	// remaining in the payload (dsi.c: "dsi->private_data_length =
	// payload_len-j-8"), since some encoders announce a length that
	// overruns the section; do the same here rather than trusting the
	// wire value.
	remaining := len(body) - off
	if int(privLen) > remaining {
		privLen = uint16(remaining)
	}
	privateData := body[off : off+int(privLen)]

	verInode := env.versionInode(tableInode, hdr.VersionNumber)
	verDir, err := td.CreateVersionDir(verInode, hdr.VersionNumber)
	if err != nil {
		return err
	}

	fields := map[string][]byte{
		"transaction_id":                   []byte(fmt.Sprintf("%#010x", msgHdr.TransactionID)),
		"server_id":                        serverID,
		"compatibility_descriptor_length": []byte(fmt.Sprintf("%d", compatLen)),
		"private_data_length":              []byte(fmt.Sprintf("%d", privLen)),
		"private_data":                     privateData,
	}
	for _, name := range []string{"transaction_id", "server_id", "compatibility_descriptor_length", "private_data_length", "private_data"} {
		if _, err := env.Tree.CreateFile(verDir, env.nextAux(), name, fields[name]); err != nil {
			return err
		}
	}

	if _, linked := verDir.ChildByName("DII"); !linked {
		key := msgHdr.TransactionID &^ uint32(0x80000000)
		if diiVerDir, ok := env.diiTransactions[key]; ok {
			diiPid := diiVerDir.Parent()
			target := fmt.Sprintf("../../../%s/%s/%s", FSDIIName, diiPid.Name, diiVerDir.Name)
			if _, err := env.Tree.CreateSymlink(verDir, env.nextAux(), "DII", target); err != nil {
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
