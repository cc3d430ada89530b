/*
NAME
  inode.go - synthetic inode formula for PSI/DSM-CC tables.

DESCRIPTION
  Implements spec.md §3's "Synthetic inode" rule: a 24-bit key formed as
  (PID<<8)|table_id, with bit 24 set to disambiguate DSI from DII when both
  share PID and table_id 0x3B, grounded on
  original_source/src/demuxfs.h's TS_PACKET_HASH_KEY macro.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package tables implements the structure-specific PSI/DSM-CC table
// decoders of spec.md §4.3: PAT, PMT, NIT, SDT, SDTT, TOT, EIT, AIT, DII,
// DSI, and DDB.
package tables

// TableIDDSMCC is the shared table_id carried by both DSI and DII
// messages; they are told apart by the message_id field inside the
// DSM-CC message header, not by table_id.
const TableIDDSMCC = 0x3B

// dsiDisambiguationBit is OR'd into a DSI dentry's inode so that it never
// collides with a DII dentry sharing the same (PID, table_id).
const dsiDisambiguationBit = 1 << 24

// Inode computes the synthetic inode for a (PID, table_id) pair.
func Inode(pid uint16, tableID byte) uint32 {
	return (uint32(pid) << 8) | uint32(tableID)
}

// DSIInode computes the synthetic inode for a DSI message, which shares
// (PID, table_id=0x3B) with DII but must never resolve to the same tree
// node.
func DSIInode(pid uint16) uint32 {
	return Inode(pid, TableIDDSMCC) | dsiDisambiguationBit
}

// DIIInode computes the synthetic inode for a DII message.
func DIIInode(pid uint16) uint32 {
	return Inode(pid, TableIDDSMCC)
}
