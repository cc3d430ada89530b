/*
NAME
  dentry.go - the filesystem tree node.

DESCRIPTION
  Implements the Dentry entity of spec.md §3, field for field, grounded on
  original_source/src/demuxfs.h's struct dentry.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package tree implements the in-memory, read-only filesystem the demuxfs
// core materialises tables, descriptors, elementary streams, and carousel
// files into. A (not included) filesystem binding exposes this tree to
// user applications through standard file operations.
package tree

import (
	"sync"
	"time"
)

// Kind identifies a dentry's filesystem object type. These correspond to
// the source's OBJ_TYPE_* bitmask, kept as a small closed enum here since
// Go does not need the bit-flag trick the source used to let AUDIO_FIFO
// and VIDEO_FIFO both satisfy an "is a FIFO" test.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindSymlink
	KindFIFOAudio
	KindFIFOVideo
	KindSnapshot
)

// IsFIFO reports whether k is one of the FIFO kinds.
func (k Kind) IsFIFO() bool { return k == KindFIFOAudio || k == KindFIFOVideo }

// Xattr is a (name, value) pair carried on a Dentry.
type Xattr struct {
	Name  string
	Value []byte
}

// XattrFormat is the display-format hint carried under the reserved xattr
// name "display.format" (see DESIGN.md's xattr-format-hint entry).
type XattrFormat int

const (
	FormatString XattrFormat = iota
	FormatNumber
	FormatBinary
	FormatNumberArray
	FormatStringAndNumber
)

// DisplayFormatXattr is the reserved xattr name carrying an XattrFormat
// hint, ported from original_source/src/fsutils.c.
const DisplayFormatXattr = "display.format"

// SnapshotDecoder lazily produces the bytes of a snapshot dentry's content
// on first read. The production implementation (spawning a helper process
// to decode a video frame) is an external collaborator per spec.md §5; no
// concrete implementation ships in this repo.
type SnapshotDecoder interface {
	Decode() ([]byte, error)
}

// Dentry is one node of the demuxfs tree.
type Dentry struct {
	Inode    uint32
	Name     string
	Kind     Kind
	Mode     uint32 // POSIX-style permission bits, informational only.
	ATime    time.Time
	CTime    time.Time
	MTime    time.Time
	Refcount int32

	// contents holds a regular file's bytes. Guarded by mu.
	contents []byte

	// xattrs holds this dentry's extended attributes, user-namespace only
	// per spec.md §6. Guarded by mu.
	xattrs []Xattr

	// symlinkTarget holds a symlink's target path, relative or absolute,
	// in the style the source emits (e.g. "../../PMT/0x0100").
	symlinkTarget string

	// Priv is an opaque pointer used by FIFO/snapshot kinds: for a FIFO it
	// is the *Fifo it is bound to; for a snapshot it is the
	// SnapshotDecoder.
	Priv interface{}

	mu       sync.Mutex
	parent   *Dentry
	children map[string]*Dentry
	// order preserves readdir enumeration order (map iteration order in Go
	// is randomized, which would make readdir output nondeterministic).
	order []string
}

func newDentry(inode uint32, name string, kind Kind) *Dentry {
	now := timeNow()
	d := &Dentry{
		Inode: inode,
		Name:  name,
		Kind:  kind,
		ATime: now,
		CTime: now,
		MTime: now,
	}
	if kind == KindDirectory {
		d.children = make(map[string]*Dentry)
	}
	return d
}

// timeNow is a seam so a future snapshot test can control dentry
// timestamps; production code always calls time.Now().
var timeNow = time.Now

// Contents returns a copy of d's regular-file contents.
func (d *Dentry) Contents() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, len(d.contents))
	copy(out, d.contents)
	return out
}

// SetContents replaces d's regular-file contents and bumps MTime.
func (d *Dentry) SetContents(b []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contents = append([]byte(nil), b...)
	d.MTime = timeNow()
}

// AppendContents appends b to d's regular-file contents, growing it (used
// by DSM-CC block files; the PES/ES FIFOs use the channel-based pes.Fifo
// instead, bound through Priv).
func (d *Dentry) AppendContents(b []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contents = append(d.contents, b...)
	d.MTime = timeNow()
}

// Size returns the length of d's regular-file contents.
func (d *Dentry) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.contents)
}

// SymlinkTarget returns the path a symlink dentry resolves to.
func (d *Dentry) SymlinkTarget() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.symlinkTarget
}

// SetSymlinkTarget sets the path a symlink dentry resolves to.
func (d *Dentry) SetSymlinkTarget(target string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.symlinkTarget = target
}

// Parent returns d's parent, or nil for the root.
func (d *Dentry) Parent() *Dentry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.parent
}

// Children returns d's children in creation order. The returned slice is a
// snapshot; mutating the tree concurrently does not affect it.
func (d *Dentry) Children() []*Dentry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Dentry, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.children[name])
	}
	return out
}

// ChildByName returns the child named name, if any.
func (d *Dentry) ChildByName(name string) (*Dentry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.children[name]
	return c, ok
}

// Open increments d's reference count.
func (d *Dentry) Open() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Refcount++
	d.ATime = timeNow()
}

// Release decrements d's reference count. Release on an already-zero
// refcount is a no-op rather than going negative, preserving the
// refcount >= 0 invariant even in the face of a misbehaving caller.
func (d *Dentry) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Refcount > 0 {
		d.Refcount--
	}
}

// IsOpen reports whether d has at least one open reference, the gate a
// FIFO dentry's writer checks before doing any delivery work (ported from
// fifo_is_open's "don't scan for a sync boundary if nobody's reading"
// contract).
func (d *Dentry) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Refcount > 0
}

// SetXattr sets (creating or replacing) the xattr named name.
func (d *Dentry) SetXattr(name string, value []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, x := range d.xattrs {
		if x.Name == name {
			d.xattrs[i].Value = append([]byte(nil), value...)
			return
		}
	}
	d.xattrs = append(d.xattrs, Xattr{Name: name, Value: append([]byte(nil), value...)})
}

// GetXattr returns the xattr named name.
func (d *Dentry) GetXattr(name string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, x := range d.xattrs {
		if x.Name == name {
			return x.Value, true
		}
	}
	return nil, false
}

// ListXattr returns the names of every xattr on d.
func (d *Dentry) ListXattr() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.xattrs))
	for i, x := range d.xattrs {
		out[i] = x.Name
	}
	return out
}

// RemoveXattr removes the xattr named name, if present.
func (d *Dentry) RemoveXattr(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, x := range d.xattrs {
		if x.Name == name {
			d.xattrs = append(d.xattrs[:i], d.xattrs[i+1:]...)
			return true
		}
	}
	return false
}

// addChild links child under d with the given name, preserving the
// unique-name-per-directory invariant: an existing child with the same
// name is detached first.
func (d *Dentry) addChild(name string, child *Dentry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.children[name]; !exists {
		d.order = append(d.order, name)
	}
	d.children[name] = child
	child.mu.Lock()
	child.parent = d
	child.mu.Unlock()
	d.MTime = timeNow()
}

// removeChild unlinks the child named name from d, if present.
func (d *Dentry) removeChild(name string) (*Dentry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.children[name]
	if !ok {
		return nil, false
	}
	delete(d.children, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	d.MTime = timeNow()
	return c, true
}
