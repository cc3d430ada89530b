/*
NAME
  tree_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package tree

import "testing"

func TestCreateDirectoryIsIdempotent(t *testing.T) {
	tr := New()
	a, err := tr.CreateDirectory(tr.Root, 1, "PAT")
	if err != nil {
		t.Fatal(err)
	}
	b, err := tr.CreateDirectory(tr.Root, 1, "PAT")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("CreateDirectory did not return the existing directory")
	}
}

func TestCreateFileUnderNonDirectoryFails(t *testing.T) {
	tr := New()
	f, err := tr.CreateFile(tr.Root, 1, "leaf", []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tr.CreateFile(f, 2, "child", nil); err != ErrNotDirectory {
		t.Errorf("err = %v, want ErrNotDirectory", err)
	}
}

func TestFindByInode(t *testing.T) {
	tr := New()
	d, err := tr.CreateDirectory(tr.Root, 42, "PMT")
	if err != nil {
		t.Fatal(err)
	}
	got, ok := tr.FindByInode(42)
	if !ok || got != d {
		t.Errorf("FindByInode(42) = %v, %v, want %v, true", got, ok, d)
	}
	if _, ok := tr.FindByInode(43); ok {
		t.Error("FindByInode(43) unexpectedly found")
	}
}

func TestIndexCollisionIsReported(t *testing.T) {
	tr := New()
	if _, err := tr.CreateDirectory(tr.Root, 7, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.CreateDirectory(tr.Root, 7, "b"); err == nil {
		t.Error("expected inode collision error")
	}
}

func TestChildrenPreservesCreationOrder(t *testing.T) {
	tr := New()
	tr.CreateFile(tr.Root, 1, "c", nil)
	tr.CreateFile(tr.Root, 2, "a", nil)
	tr.CreateFile(tr.Root, 3, "b", nil)
	names := []string{}
	for _, c := range tr.Root.Children() {
		names = append(names, c.Name)
	}
	want := []string{"c", "a", "b"}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("Children()[%d] = %q, want %q", i, names[i], n)
		}
	}
}

func TestDisposeTreeRemovesDescendantsFromIndex(t *testing.T) {
	tr := New()
	dir, _ := tr.CreateDirectory(tr.Root, 1, "v1")
	tr.CreateFile(dir, 2, "child", []byte("x"))

	tr.DisposeTree(dir)

	if _, ok := tr.Root.ChildByName("v1"); ok {
		t.Error("v1 still linked under root after DisposeTree")
	}
	if _, ok := tr.FindByInode(1); ok {
		t.Error("inode 1 still indexed after DisposeTree")
	}
	if _, ok := tr.FindByInode(2); ok {
		t.Error("inode 2 still indexed after DisposeTree")
	}
}

func TestMigrateChildrenMovesAndEmptiesSource(t *testing.T) {
	tr := New()
	oldDir, _ := tr.CreateDirectory(tr.Root, 1, "001")
	newDir, _ := tr.CreateDirectory(tr.Root, 2, "002")
	tr.CreateFile(oldDir, 3, "block_00.bin", []byte("payload"))

	tr.MigrateChildren(newDir, oldDir)

	if len(oldDir.Children()) != 0 {
		t.Error("source directory still has children after MigrateChildren")
	}
	got, ok := newDir.ChildByName("block_00.bin")
	if !ok {
		t.Fatal("migrated child not found under destination")
	}
	if string(got.Contents()) != "payload" {
		t.Errorf("migrated child contents = %q, want %q", got.Contents(), "payload")
	}
}

func TestMigrateChildrenDoesNotOverwriteExisting(t *testing.T) {
	tr := New()
	oldDir, _ := tr.CreateDirectory(tr.Root, 1, "001")
	newDir, _ := tr.CreateDirectory(tr.Root, 2, "002")
	tr.CreateFile(oldDir, 3, "shared", []byte("old"))
	tr.CreateFile(newDir, 4, "shared", []byte("new"))

	tr.MigrateChildren(newDir, oldDir)

	got, _ := newDir.ChildByName("shared")
	if string(got.Contents()) != "new" {
		t.Errorf("destination's own child was overwritten: got %q, want %q", got.Contents(), "new")
	}
}

func TestXattrRoundtrip(t *testing.T) {
	tr := New()
	d, _ := tr.CreateFile(tr.Root, 1, "version_number", []byte("2"))
	d.SetXattr(DisplayFormatXattr, []byte{byte(FormatNumber)})
	v, ok := d.GetXattr(DisplayFormatXattr)
	if !ok || XattrFormat(v[0]) != FormatNumber {
		t.Errorf("GetXattr = %v, %v, want FormatNumber", v, ok)
	}
	if !d.RemoveXattr(DisplayFormatXattr) {
		t.Error("RemoveXattr reported false for an xattr that was present")
	}
	if _, ok := d.GetXattr(DisplayFormatXattr); ok {
		t.Error("xattr still present after RemoveXattr")
	}
}

func TestGetDentryByPath(t *testing.T) {
	tr := New()
	pat, _ := tr.CreateDirectory(tr.Root, 1, "PAT")
	tr.CreateDirectory(pat, 2, "001")
	got, ok := tr.GetDentryByPath("/PAT/001")
	if !ok {
		t.Fatal("path not resolved")
	}
	if got.Name != "001" {
		t.Errorf("resolved dentry name = %q, want %q", got.Name, "001")
	}
	if _, ok := tr.GetDentryByPath("/PAT/missing"); ok {
		t.Error("unexpectedly resolved a nonexistent path")
	}
}

func TestRefcount(t *testing.T) {
	tr := New()
	d, _ := tr.CreateFile(tr.Root, 1, "f", nil)
	d.Open()
	d.Open()
	if d.Refcount != 2 {
		t.Fatalf("Refcount = %d, want 2", d.Refcount)
	}
	d.Release()
	d.Release()
	d.Release() // one extra Release must not go negative.
	if d.Refcount != 0 {
		t.Errorf("Refcount = %d, want 0", d.Refcount)
	}
}
