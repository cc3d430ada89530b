/*
NAME
  carousel.go - the object carousel engine: BIOP traversal, binding
  materialisation, and orphan reparenting.

DESCRIPTION
  Implements spec.md §4.6's Carousel engine in full: the top-level BIOP
  message-stream walk (grounded on
  original_source/src/dsm-cc/biop.c's biop_create_filesystem_dentries),
  binding-to-dentry creation (biop_create_children_dentries), file content
  delivery (biop_update_file_dentry), and the post-scan orphan pass
  (biop_reparent_orphaned_dentries).

  The original engine distinguishes "found under root" from "found under
  stepfather" with two separate fsutils_find_by_inode(root, ...) /
  fsutils_find_by_inode(stepfather, ...) calls, because in C a dentry
  discovered under the stepfather must be unlinked, copied, and freed
  before it can be relinked under its real parent. pkg/tree.Tree indexes
  every dentry it creates - root's or the stepfather's - into the one
  same inode map, so a single Tree.FindByInode lookup already searches
  both scopes at once; this port uses that unification instead of
  replicating the copy-then-dispose dance (recorded in DESIGN.md as an
  Open Question decision).

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package dsmcc

import (
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ausocean/demuxfs/pkg/logging"
	"github.com/ausocean/demuxfs/pkg/tree"
)

// Carousel drives the BIOP traversal for a single DSM-CC object carousel,
// materialising module contents as a subtree under Root (the "BIOP"
// directory the driver creates under DDB/<pid>/Current; the PMT parser's
// per-stream `BIOP -> ../../../../../DDB/<pid>/Current` symlink points at
// Root's parent, not at Root itself).
type Carousel struct {
	tr   *tree.Tree
	Root *tree.Dentry

	// Stepfather is the staging directory forward-referenced bindings are
	// created under until their real parent arrives, per biop.c's struct
	// dentry *stepfather.
	Stepfather *tree.Dentry

	log     logging.Logger
	limiter *rate.Limiter

	// orphanCounter, if set, is incremented once per discarded orphan.
	// Declared as a minimal duck-typed interface (rather than importing
	// prometheus directly) so this package stays free of a hard metrics
	// dependency; *prometheus.Counter satisfies it as-is.
	orphanCounter counter

	mu sync.Mutex
	// pendingParent records, for each dentry created under Stepfather
	// whose real parent inode was not yet resolvable, the parent inode it
	// should be moved under once that parent appears. This is this port's
	// equivalent of biop.c stashing parent_inode on the dentry itself
	// (Go's Dentry has no free-form scratch field reserved for it, so the
	// mapping lives on the Carousel instead).
	pendingParent map[*tree.Dentry]uint32

	rootResolved bool
}

// NewCarousel constructs a Carousel rooted at root, grounded on
// biop_create_filesystem_dentries' (parent, stepfather) argument pair.
// log may be nil, selecting logging.Nop.
func NewCarousel(tr *tree.Tree, root *tree.Dentry, log logging.Logger) (*Carousel, error) {
	if log == nil {
		log = logging.Nop{}
	}
	stepfather, err := tr.NewDetachedDirectory(stepfatherInode(root.Inode), "stepfather")
	if err != nil {
		return nil, err
	}
	return &Carousel{
		tr:            tr,
		Root:          root,
		Stepfather:    stepfather,
		log:           log,
		limiter:       rate.NewLimiter(rate.Every(0), 1), // replaced by SetOrphanLogRate if configured
		pendingParent: make(map[*tree.Dentry]uint32),
	}, nil
}

// stepfatherInode derives a synthetic inode for a carousel's stepfather
// directory that will not collide with the carousel root's own
// (possibly still-provisional) inode: it flips the top bit, which is
// never set by a real BIOP object_key (those are populated densely from
// zero).
func stepfatherInode(rootInode uint32) uint32 {
	return rootInode ^ 0x80000000
}

// SetOrphanLogRate configures how often the orphan-reparenting pass may
// emit its "discarding unresolvable orphan" diagnostic, grounded on
// SPEC_FULL.md's direction to rate-limit this log line the way
// snapetech-plexTuner's tuner request limiter throttles noisy warnings.
func (c *Carousel) SetOrphanLogRate(r rate.Limit, burst int) {
	c.limiter = rate.NewLimiter(r, burst)
}

// counter is the minimal shape this package needs from a metrics counter,
// satisfied as-is by *prometheus.Counter without importing prometheus here.
type counter interface {
	Inc()
}

// SetOrphanCounter wires c an external counter incremented once per orphan
// discardOrphan discards. Pass a *prometheus.Counter (e.g.
// pkg/metrics.Registry's CarouselOrphans) to track this outside of the
// rate-limited log line SetOrphanLogRate governs.
func (c *Carousel) SetOrphanCounter(m counter) {
	c.orphanCounter = m
}

// Decode walks the concatenated DDB module bytes buf, materialising BIOP
// directory and file messages as dentries, per biop_create_filesystem_dentries.
// It is safe to call Decode again as new blocks extend buf (pkg/demux's
// driver re-decodes each whole module every time a block arrives): every
// binding and file message is first looked up by inode, so an object seen
// before is reused (and, for a file message, has its contents replaced)
// rather than created a second time.
func (c *Carousel) Decode(buf []byte) error {
	j := 0
	for j+12 <= len(buf) {
		hdr, n, err := parseMessageHeader(buf[j:])
		if err != nil {
			return fmt.Errorf("dsmcc: message header at offset %d: %w", j, err)
		}
		msgStart := j
		msgEnd := j + n + int(hdr.MessageSize)
		if msgEnd > len(buf) {
			return nil // remainder of the module has not arrived yet.
		}
		body := buf[msgStart+n : msgEnd]

		kind, err := lookaheadObjectKind(body)
		if err != nil {
			return fmt.Errorf("dsmcc: object_kind lookahead at offset %d: %w", msgStart, err)
		}

		switch kind {
		case objectKindServiceGateway:
			if err := c.decodeServiceGateway(body); err != nil {
				return err
			}
		case objectKindDirectory:
			if err := c.decodeDirectory(body); err != nil {
				return err
			}
		case objectKindFile:
			if err := c.decodeFile(body); err != nil {
				return err
			}
		default:
			c.log.Log(logging.Warning, "dsmcc: unsupported BIOP object_kind, skipping message", "kind", objectKindString(kind))
		}

		j = msgEnd
	}
	return nil
}

// lookaheadObjectKind reads a BIOP message body's object_kind tag without
// fully decoding its sub-header, per biop.c's
// biop_create_filesystem_dentries four-byte lookahead
// (j+1+(buf[j+1]&0xff)+4+4, skipping object_key_length+object_key+
// object_kind_length).
func lookaheadObjectKind(body []byte) (uint32, error) {
	if len(body) < 1 {
		return 0, ErrShortPayload
	}
	keyLen := int(body[0])
	off := 1 + keyLen
	if off+4 > len(body) {
		return 0, ErrShortPayload
	}
	tag := uint32(body[off])<<24 | uint32(body[off+1])<<16 | uint32(body[off+2])<<8 | uint32(body[off+3])
	return tag, nil
}

// decodeServiceGateway handles a "srg" message: exactly one per carousel,
// per spec.md §4.6. Its sub-header's derived inode becomes Root's real
// inode (the gateway's own object_key, discovered only once this message
// arrives), after which its bindings are materialised the same way a
// directory message's are.
func (c *Carousel) decodeServiceGateway(body []byte) error {
	dm, _, err := ParseDirectoryMessage(body)
	if err != nil {
		return err
	}
	if !c.rootResolved {
		if err := c.tr.Reindex(c.Root, dm.SubHeader.Inode()); err != nil {
			return err
		}
		c.rootResolved = true
	}
	return c.createChildren(c.Root, dm.Bindings)
}

// decodeDirectory handles a "dir" message, per
// biop_create_filesystem_dentries' BIOP_DIR_MESSAGE branch.
func (c *Carousel) decodeDirectory(body []byte) error {
	dm, _, err := ParseDirectoryMessage(body)
	if err != nil {
		return err
	}
	parentInode := dm.SubHeader.Inode()
	parent, found := c.tr.FindByInode(parentInode)
	if !found {
		parent = c.Stepfather
	}
	if err := c.createChildrenWithFallback(parent, found, dm.Bindings); err != nil {
		return err
	}
	if !found {
		// The staged children's real parent is this directory message's
		// own object, not the Stepfather they were created under.
		c.mu.Lock()
		for _, b := range dm.Bindings {
			if d, ok := c.tr.FindByInode(b.ChildInode); ok && b.HasChildInode {
				if _, pending := c.pendingParent[d]; pending {
					c.pendingParent[d] = parentInode
				}
			}
		}
		c.mu.Unlock()
	}
	return nil
}

// decodeFile handles a "fil" message, per biop_update_file_dentry.
func (c *Carousel) decodeFile(body []byte) error {
	fm, _, err := ParseFileMessage(body)
	if err != nil {
		return err
	}
	inode := fm.SubHeader.Inode()

	if d, ok := c.tr.FindByInode(inode); ok {
		d.SetContents(fm.Contents)
		return nil
	}
	// No binding announced this file yet (content arrived ahead of the
	// directory message naming it); stage a placeholder named
	// orphan_<inode> under the stepfather, as biop_update_file_dentry's
	// "not found anywhere" fallback does.
	name := fmt.Sprintf("orphan_%08x", inode)
	d, err := c.tr.CreateFile(c.Stepfather, inode, name, fm.Contents)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.pendingParent[d] = 0 // unknown real parent; resolved, if ever, by a later directory message naming this inode.
	c.mu.Unlock()
	return nil
}

// createChildren materialises bindings under parent, whose real identity
// is already known.
func (c *Carousel) createChildren(parent *tree.Dentry, bindings []Binding) error {
	return c.createChildrenWithFallback(parent, true, bindings)
}

// createChildrenWithFallback materialises bindings under parent.
// foundParent reports whether parent is the binding list's true parent
// (looked up by inode) or the Stepfather standing in for an as-yet-
// unresolved one, per biop_create_children_dentries. When foundParent is
// false, each newly created dentry's remembered parent inode is recorded
// for the later orphan-reparenting pass.
func (c *Carousel) createChildrenWithFallback(parent *tree.Dentry, foundParent bool, bindings []Binding) error {
	for _, b := range bindings {
		childInode := b.ChildInode
		if !b.HasChildInode {
			c.log.Log(logging.Warning, "dsmcc: binding without a resolvable IOR object_key, skipping", "name", b.Name.ID)
			continue
		}

		switch b.Name.Kind {
		case "fil":
			if err := c.createOrUpdateFile(parent, foundParent, childInode, b); err != nil {
				return err
			}
		default:
			if err := c.createOrFindDirectory(parent, foundParent, childInode, b); err != nil {
				return err
			}
		}
	}
	return nil
}

// createOrUpdateFile materialises a "fil" binding, per
// biop_create_children_dentries' BIOP_FILE kind branch.
func (c *Carousel) createOrUpdateFile(parent *tree.Dentry, foundParent bool, inode uint32, b Binding) error {
	if existing, ok := c.tr.FindByInode(inode); ok {
		// b.ContentSize is advisory only; the file's real bytes still
		// arrive via a BIOP file message, which is what populates
		// existing's contents (see decodeFile).
		if foundParent && existing.Parent() != parent {
			if err := c.tr.Reparent(existing, parent); err != nil {
				return err
			}
			c.mu.Lock()
			delete(c.pendingParent, existing)
			c.mu.Unlock()
		}
		return nil
	}

	target := parent
	if !foundParent {
		target = c.Stepfather
	}
	d, err := c.tr.CreateFile(target, inode, b.Name.ID, nil)
	if err != nil {
		return err
	}
	if b.ContentType != "" {
		d.SetXattr("content_type", []byte(b.ContentType))
	}
	if !foundParent {
		c.mu.Lock()
		c.pendingParent[d] = parentInodeOf(parent)
		c.mu.Unlock()
	}
	return nil
}

// createOrFindDirectory materialises a directory (or stream/stream-event)
// binding, per biop_create_children_dentries' directory-kind branch.
func (c *Carousel) createOrFindDirectory(parent *tree.Dentry, foundParent bool, inode uint32, b Binding) error {
	if existing, ok := c.tr.FindByInode(inode); ok {
		if foundParent && existing.Parent() != parent {
			if err := c.tr.Reparent(existing, parent); err != nil {
				return err
			}
			c.mu.Lock()
			delete(c.pendingParent, existing)
			c.mu.Unlock()
		}
		return nil
	}

	target := parent
	if !foundParent {
		target = c.Stepfather
	}
	d, err := c.tr.CreateDirectory(target, inode, b.Name.ID)
	if err != nil {
		return err
	}
	if !foundParent {
		c.mu.Lock()
		c.pendingParent[d] = parentInodeOf(parent)
		c.mu.Unlock()
	}
	return nil
}

// parentInodeOf returns parent's inode (0 for a nil parent), used only to
// remember a pending reparent target. When parent is the Stepfather itself
// this is the Stepfather's own inode, which decodeDirectory then replaces
// with the directory message's object_key; an entry still pointing at the
// Stepfather, or at 0, is discarded by the orphan pass below.
func parentInodeOf(parent *tree.Dentry) uint32 {
	if parent == nil {
		return 0
	}
	return parent.Inode
}

// ReparentOrphans walks every direct child of Stepfather, moving it under
// its real parent if that parent has since appeared in the tree, and
// discarding it (with a rate-limited diagnostic) otherwise, per
// biop_reparent_orphaned_dentries. It should be called once a carousel
// module's full byte stream has been decoded and no further Decode calls
// are expected to resolve additional forward references.
func (c *Carousel) ReparentOrphans() {
	for _, child := range c.Stepfather.Children() {
		c.mu.Lock()
		parentInode, tracked := c.pendingParent[child]
		delete(c.pendingParent, child)
		c.mu.Unlock()

		if !tracked || parentInode == 0 {
			c.discardOrphan(child)
			continue
		}
		parent, ok := c.tr.FindByInode(parentInode)
		if !ok || parent == c.Stepfather {
			c.discardOrphan(child)
			continue
		}
		if err := c.tr.Reparent(child, parent); err != nil {
			c.discardOrphan(child)
		}
	}
}

// discardOrphan detaches child from Stepfather and removes it from the
// inode index, then logs a rate-limited diagnostic, per spec.md §4.6's
// "Orphan reparenting" invariant.
func (c *Carousel) discardOrphan(child *tree.Dentry) {
	c.tr.DisposeTree(child)
	if c.orphanCounter != nil {
		c.orphanCounter.Inc()
	}
	if c.limiter.Allow() {
		c.log.Log(logging.Warning, "dsmcc: discarding unresolvable orphan dentry", "name", child.Name, "inode", child.Inode)
	}
}
