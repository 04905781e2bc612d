/*
 * Copyright (c) 2026, QuorumFS Authors. All rights reserved.
 */
package transfer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/quorumfs/quorumfs/internal/cluster"
	"github.com/quorumfs/quorumfs/internal/inventory"
)

type fakePeer struct {
	size      int64
	data      []byte
	failAfter int // number of RequestData calls to allow before failing; 0 = never fail
	calls     int
}

func (f *fakePeer) GetFileSize(context.Context, cluster.ContactInfo, string) (int64, error) {
	return f.size, nil
}

func (f *fakePeer) RequestData(_ context.Context, _ cluster.ContactInfo, _ string, offset, size int64) ([]byte, error) {
	f.calls++
	if f.failAfter != 0 && f.calls > f.failAfter {
		return nil, errors.New("simulated transport failure")
	}
	end := offset + size
	if end > int64(len(f.data)) {
		end = int64(len(f.data))
	}
	if offset >= int64(len(f.data)) {
		return nil, nil
	}
	return f.data[offset:end], nil
}

func newTestInv(t *testing.T) *inventory.Inventory {
	t.Helper()
	inv, err := inventory.Open(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { inv.Close() })
	return inv
}

func TestCopyFileExactMultipleOfChunkSize(t *testing.T) {
	inv := newTestInv(t)
	content := make([]byte, ChunkSize*3)
	for i := range content {
		content[i] = byte(i)
	}
	peer := &fakePeer{size: int64(len(content)), data: content}

	if err := CopyFile(context.Background(), inv, cluster.ContactInfo{IP: "10.0.0.2", Port: 9002}, peer, 1, "big.bin"); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(inv.StoragePath(), "big.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(content) {
		t.Fatalf("len = %d, want %d", len(got), len(content))
	}
	if inv.GetVersion("big.bin") != 1 {
		t.Fatalf("version = %d, want 1", inv.GetVersion("big.bin"))
	}
}

func TestCopyFileShortTrailingChunk(t *testing.T) {
	inv := newTestInv(t)
	content := []byte("hi\n") // much smaller than one chunk
	peer := &fakePeer{size: int64(len(content)), data: content}

	if err := CopyFile(context.Background(), inv, cluster.ContactInfo{IP: "10.0.0.2", Port: 9002}, peer, 1, "hello.txt"); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(inv.StoragePath(), "hello.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hi\n" {
		t.Fatalf("got %q, want %q", got, "hi\n")
	}
}

func TestCopyFileFailureLeavesInventoryUntouched(t *testing.T) {
	inv := newTestInv(t)
	content := make([]byte, ChunkSize*4)
	peer := &fakePeer{size: int64(len(content)), data: content, failAfter: 2}

	inv.UpdateFileMetadata("f.bin", 3) // simulate a pre-existing older version

	err := CopyFile(context.Background(), inv, cluster.ContactInfo{IP: "10.0.0.2", Port: 9002}, peer, 4, "f.bin")
	if err == nil {
		t.Fatal("expected TransferError")
	}
	if inv.GetVersion("f.bin") != 3 {
		t.Fatalf("version = %d, want unchanged 3", inv.GetVersion("f.bin"))
	}
	if _, statErr := os.Stat(filepath.Join(inv.StoragePath(), "f.bin")); !os.IsNotExist(statErr) {
		t.Fatalf("destination file should not exist after a failed pull, stat err = %v", statErr)
	}
}
