/*
NAME
  version_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package tree

import "testing"

func TestInstallVersionRepointsCurrent(t *testing.T) {
	tr := New()
	patDir, _ := tr.CreateDirectory(tr.Root, 1, "PAT")
	td := NewTableDir(tr, patDir)

	v1, err := td.CreateVersionDir(2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := td.InstallVersion(3, v1); err != nil {
		t.Fatal(err)
	}

	cur, ok := patDir.ChildByName(CurrentName)
	if !ok || cur.Kind != KindSymlink || cur.SymlinkTarget() != VersionDirName(1) {
		t.Fatalf("Current = %+v, want symlink to %q", cur, VersionDirName(1))
	}
}

func TestInstallVersionMigratesAndDisposesPrevious(t *testing.T) {
	tr := New()
	pmtDir, _ := tr.CreateDirectory(tr.Root, 1, "PMT-0x0100")
	td := NewTableDir(tr, pmtDir)

	v1, _ := td.CreateVersionDir(2, 1)
	tr.CreateFile(v1, 10, "stream_pid", []byte("0x0101"))
	if err := td.InstallVersion(3, v1); err != nil {
		t.Fatal(err)
	}

	v2, _ := td.CreateVersionDir(4, 2)
	if err := td.InstallVersion(3, v2); err != nil {
		t.Fatal(err)
	}

	if _, ok := pmtDir.ChildByName(VersionDirName(1)); ok {
		t.Error("previous version directory still linked after upgrade")
	}
	if _, ok := tr.FindByInode(2); ok {
		t.Error("previous version's inode still indexed after upgrade")
	}
	migrated, ok := v2.ChildByName("stream_pid")
	if !ok {
		t.Fatal("long-lived child was not migrated to the new version")
	}
	if string(migrated.Contents()) != "0x0101" {
		t.Errorf("migrated child contents = %q, want %q", migrated.Contents(), "0x0101")
	}

	cur, _ := pmtDir.ChildByName(CurrentName)
	if cur.SymlinkTarget() != VersionDirName(2) {
		t.Errorf("Current target = %q, want %q", cur.SymlinkTarget(), VersionDirName(2))
	}
}

func TestVersionDirNameIsZeroPadded(t *testing.T) {
	if got := VersionDirName(2); got != "002" {
		t.Errorf("VersionDirName(2) = %q, want %q", got, "002")
	}
}
