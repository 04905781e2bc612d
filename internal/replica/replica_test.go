/*
 * Copyright (c) 2026, QuorumFS Authors. All rights reserved.
 */
package replica

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/quorumfs/quorumfs/internal/cluster"
	"github.com/quorumfs/quorumfs/internal/inventory"
	"github.com/quorumfs/quorumfs/internal/rpc"
)

// fakeCoordClient stands in for the wire client on a follower: it
// answers insert_job from a canned response, fails the size probe that
// starts a read-repair pull on demand, and records every finish_* call so tests can assert the
// release discipline.
type fakeCoordClient struct {
	insertResp rpc.Response
	sizeErr    error

	finishReadCalled  bool
	finishReadTicket  int64
	finishWriteCalled bool
	finishWriteTicket int64
	finishWriteVer    int
	finishWriteSrc    cluster.ContactInfo
	finishWriteOrigin cluster.ContactInfo
}

func (f *fakeCoordClient) ListFiles(context.Context, cluster.ContactInfo) ([]rpc.CompleteInfo, error) {
	return nil, nil
}

func (f *fakeCoordClient) GetAllFiles(context.Context, cluster.ContactInfo) ([]inventory.FileInfo, error) {
	return nil, nil
}

func (f *fakeCoordClient) InsertJob(context.Context, cluster.ContactInfo, rpc.Request) (rpc.Response, error) {
	return f.insertResp, nil
}

func (f *fakeCoordClient) FinishRead(_ context.Context, _ cluster.ContactInfo, ticket int64) error {
	f.finishReadCalled = true
	f.finishReadTicket = ticket
	return nil
}

func (f *fakeCoordClient) FinishWrite(_ context.Context, _ cluster.ContactInfo, ticket int64, version int, _ string, src, origin cluster.ContactInfo) error {
	f.finishWriteCalled = true
	f.finishWriteTicket = ticket
	f.finishWriteVer = version
	f.finishWriteSrc = src
	f.finishWriteOrigin = origin
	return nil
}

func (f *fakeCoordClient) GetFileSize(context.Context, cluster.ContactInfo, string) (int64, error) {
	if f.sizeErr != nil {
		return 0, f.sizeErr
	}
	return 0, nil
}

func (f *fakeCoordClient) RequestData(context.Context, cluster.ContactInfo, string, int64, int64) ([]byte, error) {
	return nil, nil
}

func newFollower(t *testing.T, client PeerClient) *Replica {
	t.Helper()
	inv, err := inventory.Open(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { inv.Close() })

	self := cluster.ContactInfo{IP: "10.0.0.2", Port: 9002}
	coord := cluster.ContactInfo{IP: "10.0.0.1", Port: 9001}
	cfg := &cluster.Config{
		NR: 2, NW: 2,
		ServerList:         []cluster.ContactInfo{coord, self, {IP: "10.0.0.3", Port: 9003}},
		CoordinatorContact: coord,
		Self:               self,
		Role:               cluster.RoleFollower,
	}
	return New(cfg, inv, client, nil, nil)
}

// TestReadFileFinishesEvenWhenRepairFails pins down the release rule:
// if the read-repair pull fails, the read surfaces the error but
// finish_read still reaches the coordinator so the lock is released.
func TestReadFileFinishesEvenWhenRepairFails(t *testing.T) {
	holder := cluster.ContactInfo{IP: "10.0.0.3", Port: 9003}
	client := &fakeCoordClient{
		insertResp: rpc.Response{Ticket: 7, Version: 3, Contact: &holder},
		sizeErr:    errors.New("simulated transport failure"),
	}
	r := newFollower(t, client)

	_, err := r.ReadFile(context.Background(), "f.bin")
	if err == nil {
		t.Fatal("expected the failed read-repair to surface an error")
	}
	if !client.finishReadCalled {
		t.Fatal("finish_read must be sent even when read-repair fails")
	}
	if client.finishReadTicket != 7 {
		t.Fatalf("finish_read ticket = %d, want the insert_job ticket 7", client.finishReadTicket)
	}
}

func TestReadFileSkipsRepairWhenLocalIsFresh(t *testing.T) {
	holder := cluster.ContactInfo{IP: "10.0.0.3", Port: 9003}
	client := &fakeCoordClient{
		insertResp: rpc.Response{Version: 1, Contact: &holder},
		sizeErr:    errors.New("must not be called"),
	}
	r := newFollower(t, client)
	r.inv.UpdateFileMetadata("f.bin", 1)

	path, err := r.ReadFile(context.Background(), "f.bin")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if path != filepath.Join(r.inv.StoragePath(), "f.bin") {
		t.Fatalf("path = %q", path)
	}
	if !client.finishReadCalled {
		t.Fatal("finish_read must be sent on the no-repair path too")
	}
}

// TestWriteFileBumpsVersionAndFinishes: the local copy lands under the
// storage path at quorum version + 1 and finish_write names self as
// both source and origin.
func TestWriteFileBumpsVersionAndFinishes(t *testing.T) {
	client := &fakeCoordClient{insertResp: rpc.Response{Ticket: 9, Version: 2}}
	r := newFollower(t, client)

	src := filepath.Join(t.TempDir(), "payload")
	if err := os.WriteFile(src, []byte("new content"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := r.WriteFile(context.Background(), "f.bin", src); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if v := r.inv.GetVersion("f.bin"); v != 3 {
		t.Fatalf("version = %d, want 3 (quorum max 2 + 1)", v)
	}
	got, err := os.ReadFile(filepath.Join(r.inv.StoragePath(), "f.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new content" {
		t.Fatalf("stored %q", got)
	}
	if !client.finishWriteCalled {
		t.Fatal("finish_write never reached the coordinator")
	}
	if client.finishWriteVer != 3 {
		t.Fatalf("finish_write version = %d, want 3", client.finishWriteVer)
	}
	if client.finishWriteTicket != 9 {
		t.Fatalf("finish_write ticket = %d, want the insert_job ticket 9", client.finishWriteTicket)
	}
	if !client.finishWriteSrc.Equal(r.cfg.Self) || !client.finishWriteOrigin.Equal(r.cfg.Self) {
		t.Fatalf("finish_write src/origin = %v/%v, want self twice", client.finishWriteSrc, client.finishWriteOrigin)
	}
}
