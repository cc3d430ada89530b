/*
NAME
  env.go - shared environment passed to every table parser.

DESCRIPTION
  Replaces the source's single demuxfs_data process-wide struct
  (original_source/src/demuxfs.h) with an explicit, constructor-injected
  record, per the teacher's preference for passing collaborators through
  struct fields rather than globals (revid.Revid's cfg/logger fields).

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

	"github.com/ausocean/demuxfs/pkg/descriptor"
	"github.com/ausocean/demuxfs/pkg/logging"
	"github.com/ausocean/demuxfs/pkg/metrics"
	"github.com/ausocean/demuxfs/pkg/ts"
	"github.com/ausocean/demuxfs/pkg/tree"
)

// Group directory root inodes. These sit above the 25-bit range that
// Inode/DSIInode/DIIInode ever produce ((PID<<8)|table_id maxes out under
// bit 21, and the DSI disambiguation bit is bit 24), so they can never
// collide with a table's own synthetic inode.
const (
	groupInodePAT uint32 = 1<<28 + iota
	groupInodePMT
	groupInodeNIT
	groupInodeSDT
	groupInodeEIT
	groupInodeSDTT
	groupInodeTOT
	groupInodeAIT
	groupInodeDII
	groupInodeDSI
	groupInodeDDB
	groupInodeStreams
)

// PIDRegistrar is the subset of pkg/ts.Demultiplexer that table parsers
// need to register newly discovered PIDs for PSI or PES carriage. It is
// an interface here (rather than a direct *ts.Demultiplexer field) so
// pkg/psi/tables never imports pkg/ts, avoiding an import cycle (pkg/ts
// depends on pkg/psi, and pkg/psi/tables is dispatched to from pkg/ts via
// the table-independent psi.Registry).
type PIDRegistrar interface {
	RegisterPSIPID(pid uint16)
	UnregisterPSIPID(pid uint16)
	RegisterPESPID(pid uint16, sink ts.PESSink)
	UnregisterPESPID(pid uint16)
}

// PESBinder is implemented by the PES reassembler (pkg/pes.Reassembler):
// it both satisfies ts.PESSink (so it can be handed to RegisterPESPID) and
// exposes the per-stream FIFO bindings the PMT parser needs when it
// discovers a new elementary stream.
type PESBinder interface {
	ts.PESSink
	BindStream(pid uint16, streamType byte, pesFIFO, esFIFO *tree.Dentry)
	UnbindStream(pid uint16)
}

// CarouselFeeder is implemented by pkg/demux's driver. DDBParser calls
// FeedDDB after materialising each new block file, handing it the DDB
// table's Current version directory so the driver can re-scan its
// module_NN/block_NN.bin children and drive the DSM-CC carousel engine
// (pkg/dsmcc) from them. A nil Carousel field leaves DDB block files as
// inert data, matching original_source/src/tables/ddb.c's ddb_parse,
// which materialises block files but never calls
// biop_create_filesystem_dentries itself.
type CarouselFeeder interface {
	FeedDDB(pid uint16, currentDir *tree.Dentry)
}

// Env bundles the collaborators every table parser needs: the tree to
// mutate, the descriptor registries to walk ES/PMT/AIT descriptor loops
// with, the PID registrar to wire up newly discovered PMT/NIT/ES PIDs,
// and ambient logging/metrics/config.
type Env struct {
	Tree        *tree.Tree
	Descriptors *descriptor.Registry
	DSMCCDesc   *descriptor.Registry
	Registrar   PIDRegistrar
	PES         PESBinder
	Carousel    CarouselFeeder
	Log         logging.Logger
	Metrics     *metrics.Registry
	ParsePES    bool

	// tableDirs caches one *tree.TableDir per table directory inode so
	// repeated version installs on the same table reuse the same
	// Current-symlink inode, per spec.md §4.7.
	tableDirs map[uint32]*tree.TableDir

	// installedVersion records, per table directory inode, the
	// version_number of the presently-installed version, so a repeat of
	// the same version (or current_next_indicator=0) can be discarded per
	// spec.md §4.3 step 3.
	installedVersion map[uint32]int

	// patPrograms maps program_number to PMT PID as last announced by the
	// PAT, consulted by the SDT parser's service_id cross-check (spec.md
	// §4.3's SDT responsibility).
	patPrograms map[uint16]uint16

	// diiTransactions maps a DII's transaction_id to its version dentry,
	// consulted by the DSI parser to link a DSI to its associated DII
	// (spec.md §4.3's DSI responsibility).
	diiTransactions map[uint32]*tree.Dentry

	// auxInode allocates inodes for dentries that carry no synthetic
	// meaning of their own (a version's Programs directory, a Programs/<n>
	// symlink, a Service_<n> directory, ...). It starts well above any
	// inode Inode/DSIInode/DIIInode or a group/version inode can produce,
	// so no bit-packing arithmetic is needed at call sites and no overflow
	// can occur within one parser session's dentry count.
	auxInode uint32
}

// nextAux returns a fresh inode for an auxiliary dentry.
func (e *Env) nextAux() uint32 {
	e.auxInode++
	return e.auxInode
}

// NewEnv constructs an Env. t must already have its root directory.
func NewEnv(t *tree.Tree, desc, dsmccDesc *descriptor.Registry, reg PIDRegistrar, pes PESBinder, log logging.Logger, m *metrics.Registry, parsePES bool) *Env {
	if log == nil {
		log = logging.Nop{}
	}
	return &Env{
		Tree:            t,
		Descriptors:     desc,
		DSMCCDesc:       dsmccDesc,
		Registrar:       reg,
		PES:             pes,
		Log:             log,
		Metrics:         m,
		ParsePES:        parsePES,
		tableDirs:        make(map[uint32]*tree.TableDir),
		installedVersion: make(map[uint32]int),
		patPrograms:      make(map[uint16]uint16),
		diiTransactions:  make(map[uint32]*tree.Dentry),
		auxInode:         1 << 30,
	}
}

// versionInode returns an inode for the version directory of tableInode at
// version, stable across repeated calls for the same (tableInode, version)
// pair within one process (needed so re-feeding an identical version, e.g.
// in a test, resolves to the same dentry rather than allocating a
// duplicate). It is distinct from any group/table/aux inode range.
func (e *Env) versionInode(tableInode uint32, version byte) uint32 {
	return 1<<29 | tableInode<<5 | uint32(version)&0x1f
}

// shouldInstall reports whether a table parser should continue processing
// a section with the given version_number and current_next_indicator, per
// spec.md §4.3 step 3: a version repeat or current_next_indicator=0 means
// discard. tableInode identifies the table directory (its Current symlink
// inode), not any particular version.
func (e *Env) shouldInstall(tableInode uint32, currentNext bool, version byte) bool {
	if !currentNext {
		return false
	}
	if v, ok := e.installedVersion[tableInode]; ok && v == int(version) {
		return false
	}
	return true
}

// markInstalled records version as the presently-installed version_number
// for tableInode, to be consulted by the next call to shouldInstall.
func (e *Env) markInstalled(tableInode uint32, version byte) {
	e.installedVersion[tableInode] = int(version)
	if e.Metrics != nil {
		e.Metrics.TableVersions.WithLabelValues(fmt.Sprintf("%#06x", tableInode)).Inc()
	}
}

// tableDir returns (creating if necessary) the TableDir for one table.
// For a singleton table (PAT, NIT, SDT, TOT, AIT) dirName is empty and the
// group directory named groupName directly under the tree root is itself
// the table directory. For a per-PID table (PMT, EIT, SDTT, DII, DSI, DDB)
// dirName (e.g. "0x0100") names a subdirectory of the group directory.
func (e *Env) tableDir(groupInode uint32, groupName string, nameInode uint32, dirName string) (*tree.TableDir, error) {
	group, err := e.Tree.CreateDirectory(e.Tree.Root, groupInode, groupName)
	if err != nil {
		return nil, err
	}
	dir := group
	if dirName != "" {
		dir, err = e.Tree.CreateDirectory(group, nameInode, dirName)
		if err != nil {
			return nil, err
		}
	}
	if td, ok := e.tableDirs[nameInode]; ok {
		return td, nil
	}
	td := tree.NewTableDir(e.Tree, dir)
	e.tableDirs[nameInode] = td
	return td, nil
}
