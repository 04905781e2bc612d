/*
 * Copyright (c) 2026, QuorumFS Authors. All rights reserved.
 */
package inventory

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestInventory(t *testing.T) *Inventory {
	t.Helper()
	dir := t.TempDir()
	inv, err := Open(dir, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { inv.Close() })
	return inv
}

func TestGetVersionUnknownIsZero(t *testing.T) {
	inv := newTestInventory(t)
	if v := inv.GetVersion("missing.txt"); v != 0 {
		t.Fatalf("version = %d, want 0", v)
	}
}

func TestUpdateFileMetadataMonotonic(t *testing.T) {
	inv := newTestInventory(t)
	inv.UpdateFileMetadata("a.txt", 3)
	inv.UpdateFileMetadata("a.txt", 1) // must not regress
	if v := inv.GetVersion("a.txt"); v != 3 {
		t.Fatalf("version = %d, want 3 (must not regress)", v)
	}
	inv.UpdateFileMetadata("a.txt", 5)
	if v := inv.GetVersion("a.txt"); v != 5 {
		t.Fatalf("version = %d, want 5", v)
	}
}

func TestRequestDataShortChunkAtEOF(t *testing.T) {
	inv := newTestInventory(t)
	content := []byte("hello world")
	if err := os.WriteFile(filepath.Join(inv.StoragePath(), "f.txt"), content, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := inv.RequestData("f.txt", 6, 2048)
	if err != nil {
		t.Fatalf("RequestData: %v", err)
	}
	if string(got) != "world" {
		t.Fatalf("got %q, want %q", got, "world")
	}
}

func TestRequestDataPastEOFIsEmpty(t *testing.T) {
	inv := newTestInventory(t)
	content := []byte("short")
	if err := os.WriteFile(filepath.Join(inv.StoragePath(), "f.txt"), content, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := inv.RequestData("f.txt", 100, 2048)
	if err != nil {
		t.Fatalf("RequestData: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d bytes, want 0", len(got))
	}
}

func TestGetFileSizeNotFound(t *testing.T) {
	inv := newTestInventory(t)
	if _, err := inv.GetFileSize("nope.txt"); err == nil {
		t.Fatal("expected NotFound error")
	}
}

func TestGetAllFilesSnapshot(t *testing.T) {
	inv := newTestInventory(t)
	inv.UpdateFileMetadata("a", 1)
	inv.UpdateFileMetadata("b", 2)
	all := inv.GetAllFiles()
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}
}

func TestSeedDoesNotRequireMonotonic(t *testing.T) {
	inv := newTestInventory(t)
	inv.UpdateFileMetadata("a", 5)
	if err := inv.Seed(map[string]int{"a": 1}); err != nil {
		t.Fatal(err)
	}
	if v := inv.GetVersion("a"); v != 1 {
		t.Fatalf("version = %d, want 1 (seed may regress)", v)
	}
}
