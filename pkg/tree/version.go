/*
NAME
  version.go - versioned directory / Current symlink protocol.

DESCRIPTION
  Implements spec.md §4.7's create_version_dir / migrate_children /
  dispose_tree upgrade sequence, grounded on original_source/src/fsutils.c's
  create_version_dir and the table parsers in original_source/src/tables
  that call it around every version_number change.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package tree

import "fmt"

// CurrentName is the reserved child name of a table directory whose
// symlink always resolves to the presently-installed version directory.
const CurrentName = "Current"

// VersionDirName zero-pads version_number the way the source's
// create_version_dir does, so that lexical and numeric ordering of
// version directory names coincide.
func VersionDirName(version uint8) string {
	return fmt.Sprintf("%03d", version)
}

// TableDir is a handle on one (PID, table_id) table's directory, tracking
// which version is currently installed so InstallVersion can migrate and
// dispose correctly across repeated version bumps.
type TableDir struct {
	Dir     *Dentry
	tree    *Tree
	current *Dentry // the version directory Current currently targets, if any.
}

// NewTableDir wraps an existing directory dentry as a TableDir. dir must
// already be created (e.g. via Tree.CreateDirectory) under its table-group
// parent (such as "/PMT").
func NewTableDir(t *Tree, dir *Dentry) *TableDir {
	return &TableDir{Dir: dir, tree: t}
}

// CreateVersionDir creates (or returns the existing) version subdirectory
// named by version under td.Dir. Callers populate it, then call
// InstallVersion to make it Current.
func (td *TableDir) CreateVersionDir(inode uint32, version uint8) (*Dentry, error) {
	return td.tree.CreateDirectory(td.Dir, inode, VersionDirName(version))
}

// InstallVersion repoints td.Dir's Current symlink at newVersion, migrates
// long-lived children from the previously-installed version (if any), and
// disposes the previous version's subtree, in that order, per spec.md
// §4.7's create_version_dir → migrate_children → dispose_tree sequence.
//
// symlinkInode is the inode to (re)use for the Current symlink; a table
// directory's Current symlink keeps a single stable inode across the
// table's whole lifetime rather than being allocated fresh on every
// version bump.
func (td *TableDir) InstallVersion(symlinkInode uint32, newVersion *Dentry) error {
	prev := td.current

	if existing, ok := td.Dir.ChildByName(CurrentName); ok {
		td.tree.unlinkSymlink(td.Dir, existing)
	}
	if _, err := td.tree.CreateSymlink(td.Dir, symlinkInode, CurrentName, newVersion.Name); err != nil {
		return err
	}
	td.current = newVersion

	if prev != nil && prev != newVersion {
		td.tree.MigrateChildren(newVersion, prev)
		td.tree.DisposeTree(prev)
	}
	return nil
}

// Current returns the version directory td.Dir's Current symlink presently
// targets, if any version has been installed yet.
func (td *TableDir) Current() (*Dentry, bool) {
	return td.current, td.current != nil
}

// unlinkSymlink removes a plain symlink child without recursing into a
// target (DisposeTree would otherwise walk through the symlink's target
// name only as a detach, but a symlink dentry never has children, so this
// is just a guarded removeChild; kept as a named step for readability at
// call sites that reason about the versioned-directory protocol).
func (t *Tree) unlinkSymlink(parent, sym *Dentry) {
	if sym.Kind != KindSymlink {
		return
	}
	parent.removeChild(sym.Name)
	t.unindex(sym)
}
