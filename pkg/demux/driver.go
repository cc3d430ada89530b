/*
NAME
  driver.go - wires the packet demultiplexer, table parsers, PES
  reassembler, and carousel engine into one running parser session.

DESCRIPTION
  Implements the parser goroutine of spec.md §5's two-goroutine model:
  Driver owns everything upstream of the in-memory tree (pkg/tree), reading
  packets from a pkg/backend.Backend and feeding them through
  pkg/ts.Demultiplexer. The filesystem-binding goroutine that exposes the
  resulting tree to user applications is an external collaborator, per
  spec.md's scope.

  Start/Stop/Running follow the shape of
  github.com/ausocean/av/revid/revid.Revid's own processing-routine
  lifecycle (a stop channel closed by Stop, a sync.WaitGroup the caller
  can rely on having drained once Stop returns).

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package demux wires pkg/ts, pkg/psi, pkg/psi/tables, pkg/pes and
// pkg/dsmcc together into the parser driver spec.md §5 describes, and
// states the sentinel error vocabulary (errors.go) that those packages'
// failures surface as.
package demux

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ausocean/demuxfs/pkg/backend"
	"github.com/ausocean/demuxfs/pkg/config"
	"github.com/ausocean/demuxfs/pkg/descriptor"
	"github.com/ausocean/demuxfs/pkg/dsmcc"
	"github.com/ausocean/demuxfs/pkg/logging"
	"github.com/ausocean/demuxfs/pkg/metrics"
	"github.com/ausocean/demuxfs/pkg/pes"
	"github.com/ausocean/demuxfs/pkg/psi"
	"github.com/ausocean/demuxfs/pkg/psi/tables"
	"github.com/ausocean/demuxfs/pkg/tree"
	"github.com/ausocean/demuxfs/pkg/ts"
	"github.com/pkg/errors"
)

// table_ids dispatched globally (independent of PID), per spec.md §4.3's
// table-specific responsibilities list.
const (
	tableIDPAT     = 0x00
	tableIDPMT     = 0x02
	tableIDNIT     = 0x40
	tableIDNITOth  = 0x41
	tableIDSDT     = 0x42
	tableIDSDTOth  = 0x46
	tableIDEITLow  = 0x4E
	tableIDEITHigh = 0x6F
	tableIDSDTT    = 0xC3
	tableIDTOT     = 0x73
	tableIDAIT     = 0x74
)

// Driver is a single running parser session: one Tree, one Demultiplexer,
// one set of table parsers, and a carousel engine instance per DSM-CC
// elementary stream.
type Driver struct {
	cfg     config.Config
	backend backend.Backend
	log     logging.Logger
	metrics *metrics.Registry

	// Tree is the session's output sink, the same tree a (not included)
	// filesystem binding would expose to user applications.
	Tree *tree.Tree

	registry *psi.Registry
	demux    *ts.Demultiplexer
	env      *tables.Env

	reportWatcher *config.ReportWatcher

	carouselMu sync.Mutex
	carousels  map[uint16]*dsmcc.Carousel

	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewDriver constructs a Driver bound to be, validating it first via
// pkg/backend.Validate. log and m may be nil, in which case logging is
// discarded and metrics are not recorded.
func NewDriver(cfg config.Config, be backend.Backend, log logging.Logger, m *metrics.Registry) (*Driver, error) {
	if err := backend.Validate(be); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Nop{}
	}

	t := tree.New()
	reg := psi.NewRegistry()
	demuxer := ts.NewDemultiplexer(reg, cfg.Report, log, m)
	reassembler := pes.NewReassembler(0, log)

	d := &Driver{
		cfg:       cfg,
		backend:   be,
		log:       log,
		metrics:   m,
		Tree:      t,
		registry:  reg,
		demux:     demuxer,
		carousels: make(map[uint16]*dsmcc.Carousel),
	}

	// Descriptor-tag parser internals are an external collaborator per
	// spec.md's scope; the registries are wired but left empty here, so
	// descriptor.Registry.Parse's own "unknown tag, skip" path is what
	// every descriptor currently takes.
	env := tables.NewEnv(t, descriptor.NewRegistry(), descriptor.NewRegistry(), demuxer, reassembler, log, m, cfg.ParsePES)
	env.Carousel = d
	d.env = env

	d.registerWellKnownPIDs()
	d.registerTableParsers()

	return d, nil
}

// registerWellKnownPIDs marks the fixed PSI PIDs spec.md §4.1 always
// treats as section-carrying, independent of any table announcing them.
func (d *Driver) registerWellKnownPIDs() {
	for pid := range ts.WellKnownPSIPIDs() {
		d.demux.RegisterPSIPID(pid)
	}
}

// registerTableParsers binds every pkg/psi/tables parser to the table_id
// (or table_id range) it owns. Every parser is dispatched by table_id
// alone: no PID-specific parser is registered with pkg/psi.Registry. The
// PMT and PAT parsers' env.Registrar.RegisterPSIPID calls only mark
// newly discovered PIDs (PMT, DII/DSI/DDB streams) as PSI-carrying on the
// demultiplexer, whose sections then reach these table_id parsers.
func (d *Driver) registerTableParsers() {
	reg := d.registry

	reg.RegisterTableID(tableIDPAT, tables.PATParser(d.env))
	reg.RegisterTableID(tableIDPMT, tables.PMTParser(d.env))
	reg.RegisterTableID(tableIDNIT, tables.NITParser(d.env))
	reg.RegisterTableID(tableIDNITOth, tables.NITParser(d.env))
	reg.RegisterTableID(tableIDSDT, tables.SDTParser(d.env))
	reg.RegisterTableID(tableIDSDTOth, tables.SDTParser(d.env))
	for id := tableIDEITLow; id <= tableIDEITHigh; id++ {
		reg.RegisterTableID(byte(id), tables.EITParser(d.env))
	}
	reg.RegisterTableID(tableIDSDTT, tables.SDTTParser(d.env))
	reg.RegisterTableID(tableIDTOT, tables.TOTParser(d.env))
	reg.RegisterTableID(tableIDAIT, tables.AITParser(d.env))
	reg.RegisterTableID(tables.TableIDDSMCC, tables.DIIParser(d.env))
	reg.RegisterTableID(tables.TableIDDDB, tables.DDBParser(d.env))
}

// Start begins the parser goroutine: it creates the backend, then reads
// and processes packets until Stop is called or the backend reports a
// fatal error. Start returns immediately with a channel that receives
// exactly one value when the parser goroutine exits: nil after Stop, or
// an ErrBackendFatal-wrapped error after a failed backend Read.
func (d *Driver) Start() (<-chan error, error) {
	if d.running {
		return nil, errors.New("demux: driver already running")
	}
	if err := d.backend.Create(); err != nil {
		return nil, errors.Wrapf(ErrBackendFatal, "backend create: %v", err)
	}

	d.stop = make(chan struct{})
	errc := make(chan error, 1)
	d.running = true
	d.wg.Add(1)
	go d.run(errc)
	return errc, nil
}

// Stop signals the parser goroutine to exit and waits for it to do so,
// then destroys the backend.
func (d *Driver) Stop() {
	if !d.running {
		return
	}
	close(d.stop)
	d.wg.Wait()
	if err := d.backend.Destroy(); err != nil {
		d.log.Log(logging.Error, "backend destroy failed", "err", err)
	}
	d.running = false
}

// Running reports whether the parser goroutine is presently active.
func (d *Driver) Running() bool { return d.running }

// SetReportWatcher wires rw's live diagnostics bitmask into the
// demultiplexer: each processed packet picks up rw.Mask()'s current value
// via ts.Demultiplexer.SetReport, so an operator editing
// Config.TmpDir/report_mask takes effect without a restart. Pass nil to
// go back to a fixed bitmask.
func (d *Driver) SetReportWatcher(rw *config.ReportWatcher) {
	d.reportWatcher = rw
}

func (d *Driver) run(errc chan<- error) {
	defer d.wg.Done()
	buf := make([]byte, ts.PacketSize208)
	for {
		select {
		case <-d.stop:
			errc <- nil
			return
		default:
		}

		if d.reportWatcher != nil {
			d.demux.SetReport(d.reportWatcher.Mask())
		}

		n, err := d.backend.Read(buf)
		if err != nil {
			errc <- errors.Wrapf(ErrBackendFatal, "backend read: %v", err)
			return
		}
		if n == 0 {
			continue
		}
		if perr := d.demux.ProcessPacket(buf[:n]); perr != nil {
			d.log.Log(logging.Warning, "packet dropped", "err", perr)
		}
		if err := d.backend.Process(); err != nil {
			d.log.Log(logging.Warning, "backend Process failed", "err", err)
		}
	}
}

// FeedDDB implements tables.CarouselFeeder. It is called by DDBParser
// immediately after a new DSM-CC block file is materialised under
// currentDir. It re-scans currentDir's module_NN/block_NN.bin children,
// concatenates each module's blocks in block_number order, and hands the
// result to that PID's Carousel, creating one lazily (mounted as a "BIOP"
// child of currentDir, matching the symlink target
// original_source/src/tables/pmt.c's pmt_parse builds:
// "../../../../../DDB/<pid>/Current/BIOP") on first use.
func (d *Driver) FeedDDB(pid uint16, currentDir *tree.Dentry) {
	c, err := d.carouselFor(pid, currentDir)
	if err != nil {
		d.log.Log(logging.Warning, "could not create carousel root", "pid", fmt.Sprintf("%#04x", pid), "err", err)
		return
	}

	for _, modDir := range currentDir.Children() {
		if !strings.HasPrefix(modDir.Name, "module_") || modDir.Kind != tree.KindDirectory {
			continue
		}
		moduleBytes := concatenateBlocks(modDir)
		if len(moduleBytes) == 0 {
			continue
		}
		if err := c.Decode(moduleBytes); err != nil {
			d.log.Log(logging.Warning, "carousel decode failed", "pid", fmt.Sprintf("%#04x", pid), "module", modDir.Name, "err", err)
		}
	}
	c.ReparentOrphans()
}

// carouselRootInode derives a stable, provisional root inode for a DSM-CC
// elementary stream's carousel before its "srg\0" service gateway message
// has been seen (see pkg/dsmcc's Carousel.decodeServiceGateway, which
// reindexes it to the true object_key once that message arrives).
func carouselRootInode(pid uint16) uint32 {
	return 1<<27 | uint32(pid)
}

func (d *Driver) carouselFor(pid uint16, currentDir *tree.Dentry) (*dsmcc.Carousel, error) {
	d.carouselMu.Lock()
	defer d.carouselMu.Unlock()

	if c, ok := d.carousels[pid]; ok {
		return c, nil
	}

	root, err := d.Tree.CreateDirectory(currentDir, carouselRootInode(pid), "BIOP")
	if err != nil {
		return nil, err
	}
	c, err := dsmcc.NewCarousel(d.Tree, root, d.log)
	if err != nil {
		return nil, err
	}
	if d.metrics != nil {
		c.SetOrphanCounter(d.metrics.CarouselOrphans)
	}
	d.carousels[pid] = c
	return c, nil
}

// concatenateBlocks orders modDir's block_NN.bin children by block_number
// and concatenates their contents, per spec.md §4.6's "concatenates the
// blocks" carousel decode step.
func concatenateBlocks(modDir *tree.Dentry) []byte {
	children := modDir.Children()
	sort.Slice(children, func(i, j int) bool {
		return blockNumber(children[i].Name) < blockNumber(children[j].Name)
	})
	var out []byte
	for _, c := range children {
		if c.Kind != tree.KindFile || !strings.HasPrefix(c.Name, "block_") {
			continue
		}
		out = append(out, c.Contents()...)
	}
	return out
}

// blockNumber extracts the numeric block_number from a "block_NN.bin"
// dentry name; a malformed name sorts last rather than panicking.
func blockNumber(name string) int {
	name = strings.TrimPrefix(name, "block_")
	name = strings.TrimSuffix(name, ".bin")
	n, err := strconv.Atoi(name)
	if err != nil {
		return 1<<31 - 1
	}
	return n
}
