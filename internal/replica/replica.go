// Package replica implements the client-facing operations
// (ListFiles, ReadFile, WriteFile) and wires every RPC handler
// internal/rpc.Server dispatches to, whether this process is the
// coordinator or a follower. The coordinator-only logic itself
// (insert_job, finish_read, finish_write, the quorum engine) lives in
// internal/coordinator; Replica only decides whether to run it
// in-process (coord != nil) or forward it over the wire to
// cfg.CoordinatorContact.
/*
 * Copyright (c) 2026, QuorumFS Authors. All rights reserved.
 */
package replica

import (
	"context"
	"io"
	"os"
	"path/filepath"

	cuckoo "github.com/seiflotfy/cuckoofilter"
	"golang.org/x/sync/errgroup"

	"github.com/quorumfs/quorumfs/internal/cluster"
	"github.com/quorumfs/quorumfs/internal/coordinator"
	"github.com/quorumfs/quorumfs/internal/inventory"
	"github.com/quorumfs/quorumfs/internal/metrics"
	"github.com/quorumfs/quorumfs/internal/qerrors"
	"github.com/quorumfs/quorumfs/internal/qlog"
	"github.com/quorumfs/quorumfs/internal/rpc"
	"github.com/quorumfs/quorumfs/internal/transfer"
)

// PeerClient is everything Replica needs from internal/rpc.Client: the
// full outbound surface to peers and the coordinator. Defined here so
// this package depends only on the shapes it actually calls.
type PeerClient interface {
	ListFiles(ctx context.Context, peer cluster.ContactInfo) ([]rpc.CompleteInfo, error)
	GetAllFiles(ctx context.Context, peer cluster.ContactInfo) ([]inventory.FileInfo, error)
	InsertJob(ctx context.Context, peer cluster.ContactInfo, req rpc.Request) (rpc.Response, error)
	FinishRead(ctx context.Context, peer cluster.ContactInfo, ticket int64) error
	FinishWrite(ctx context.Context, peer cluster.ContactInfo, ticket int64, version int, name string, src, origin cluster.ContactInfo) error
	GetFileSize(ctx context.Context, peer cluster.ContactInfo, name string) (int64, error)
	RequestData(ctx context.Context, peer cluster.ContactInfo, name string, offset, size int64) ([]byte, error)
}

// Replica implements internal/rpc.Handler: the full RPC surface,
// regardless of role. coord is non-nil only on the replica whose
// cfg.Role is RoleCoordinator.
type Replica struct {
	cfg    *cluster.Config
	inv    *inventory.Inventory
	client PeerClient
	coord  *coordinator.Coordinator
	mtr    *metrics.Metrics
}

func New(cfg *cluster.Config, inv *inventory.Inventory, client PeerClient, coord *coordinator.Coordinator, mtr *metrics.Metrics) *Replica {
	return &Replica{cfg: cfg, inv: inv, client: client, coord: coord, mtr: mtr}
}

// --- local inventory surface, exposed directly over RPC ---

func (r *Replica) GetAllFiles(context.Context) ([]inventory.FileInfo, error) {
	return r.inv.GetAllFiles(), nil
}

func (r *Replica) GetVersion(_ context.Context, name string) (int, error) {
	return r.inv.GetVersion(name), nil
}

func (r *Replica) GetFileSize(_ context.Context, name string) (int64, error) {
	return r.inv.GetFileSize(name)
}

func (r *Replica) RequestData(_ context.Context, name string, offset, size int64) ([]byte, error) {
	return r.inv.RequestData(name, offset, size)
}

// CopyFile answers the directed-pull RPC: this replica pulls name from
// src via its own chunked transfer path.
func (r *Replica) CopyFile(ctx context.Context, version int, name string, src cluster.ContactInfo) error {
	return transfer.CopyFile(ctx, r.inv, src, r.client, version, name)
}

// --- coordinator-only surface: real logic if this replica is the
// coordinator, otherwise a protocol error since nothing should be
// calling these endpoints on a follower directly ---

func (r *Replica) InsertJob(ctx context.Context, req rpc.Request) (rpc.Response, error) {
	if r.coord == nil {
		return rpc.Response{}, qerrors.NewProtocolError("insert_job: this replica is not the coordinator", nil)
	}
	return r.coord.InsertJob(ctx, req)
}

func (r *Replica) FinishRead(_ context.Context, ticket int64) error {
	if r.coord == nil {
		return qerrors.NewProtocolError("finish_read: this replica is not the coordinator", nil)
	}
	return r.coord.FinishRead(ticket)
}

func (r *Replica) FinishWrite(ctx context.Context, ticket int64, version int, name string, src, origin cluster.ContactInfo) error {
	if r.coord == nil {
		return qerrors.NewProtocolError("finish_write: this replica is not the coordinator", nil)
	}
	return r.coord.FinishWrite(ctx, ticket, version, name, src, origin)
}

func (r *Replica) CordListFiles(ctx context.Context) ([]rpc.CompleteInfo, error) {
	if r.coord == nil {
		return nil, qerrors.NewProtocolError("cord_list_files: this replica is not the coordinator", nil)
	}
	out := make([]rpc.CompleteInfo, len(r.cfg.ServerList))
	g, gctx := errgroup.WithContext(ctx)
	for i, peer := range r.cfg.ServerList {
		i, peer := i, peer
		if peer.Equal(r.cfg.Self) {
			out[i] = rpc.CompleteInfo{Contact: peer, Files: r.inv.GetAllFiles()}
			continue
		}
		g.Go(func() error {
			files, err := r.client.GetAllFiles(gctx, peer)
			if err != nil {
				qlog.Warnf("cord_list_files: %s unreachable: %v", peer, err)
				out[i] = rpc.CompleteInfo{Contact: peer}
				return nil
			}
			out[i] = rpc.CompleteInfo{Contact: peer, Files: files}
			return nil
		})
	}
	_ = g.Wait()

	distinct := cuckoo.NewFilter(1024)
	for _, ci := range out {
		for _, f := range ci.Files {
			distinct.InsertUnique([]byte(f.Name))
		}
	}
	r.mtr.ObserveDistinctFiles(uint32(distinct.Count()))
	return out, nil
}

// --- client-facing operations ---

// ListFiles delegates to the coordinator when this replica is a
// follower; when it is the coordinator it runs cord_list_files
// in-process. This call does not pass through the serialization core:
// it is best-effort and may observe in-flight writes.
func (r *Replica) ListFiles(ctx context.Context) ([]rpc.CompleteInfo, error) {
	if r.coord != nil {
		return r.CordListFiles(ctx)
	}
	return r.client.ListFiles(ctx, r.cfg.CoordinatorContact)
}

// ReadFile asks the coordinator for the freshest known version, pulls
// it locally if this replica is behind (read-repair), and returns the
// local path. finishRead runs via defer so the coordinator lock is
// released even if the read-repair pull fails.
func (r *Replica) ReadFile(ctx context.Context, name string) (string, error) {
	resp, err := r.insertJob(ctx, rpc.Request{Type: rpc.TypeRead, Filename: name})
	if err != nil {
		return "", err
	}
	defer func() {
		if ferr := r.finishRead(ctx, resp.Ticket); ferr != nil {
			qlog.Warnf("read_file %s: finish_read: %v", name, ferr)
		}
	}()

	if resp.Contact != nil && r.inv.GetVersion(name) < resp.Version {
		if err := transfer.CopyFile(ctx, r.inv, *resp.Contact, r.client, resp.Version, name); err != nil {
			return "", err
		}
	}
	return filepath.Join(r.inv.StoragePath(), name), nil
}

// WriteFile submits a write task, copies the client-supplied file into
// local storage at quorum version + 1, and reports completion via
// finish_write -- always invoked via defer, the same release
// discipline ReadFile uses.
func (r *Replica) WriteFile(ctx context.Context, name, externalPath string) error {
	resp, err := r.insertJob(ctx, rpc.Request{Type: rpc.TypeWrite, Filename: name})
	if err != nil {
		return err
	}
	newVersion := resp.Version + 1

	defer func() {
		if ferr := r.finishWrite(ctx, resp.Ticket, newVersion, name, r.cfg.Self, r.cfg.Self); ferr != nil {
			qlog.Warnf("write_file %s: finish_write: %v", name, ferr)
		}
	}()

	if err := r.copyLocal(externalPath, name); err != nil {
		return err
	}
	r.inv.UpdateFileMetadata(name, newVersion)
	return nil
}

func (r *Replica) copyLocal(externalPath, name string) error {
	dst := filepath.Join(r.inv.StoragePath(), name)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	src, err := os.Open(externalPath)
	if err != nil {
		return err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".qfs-write-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, dst)
}

// insertJob/finishRead/finishWrite route to the in-process coordinator
// when this replica holds one, otherwise over the wire to
// cfg.CoordinatorContact. A client may contact any replica; that
// replica talks to the coordinator, possibly itself.
func (r *Replica) insertJob(ctx context.Context, req rpc.Request) (rpc.Response, error) {
	if r.coord != nil {
		return r.coord.InsertJob(ctx, req)
	}
	return r.client.InsertJob(ctx, r.cfg.CoordinatorContact, req)
}

func (r *Replica) finishRead(ctx context.Context, ticket int64) error {
	if r.coord != nil {
		return r.coord.FinishRead(ticket)
	}
	return r.client.FinishRead(ctx, r.cfg.CoordinatorContact, ticket)
}

func (r *Replica) finishWrite(ctx context.Context, ticket int64, version int, name string, src, origin cluster.ContactInfo) error {
	if r.coord != nil {
		return r.coord.FinishWrite(ctx, ticket, version, name, src, origin)
	}
	return r.client.FinishWrite(ctx, r.cfg.CoordinatorContact, ticket, version, name, src, origin)
}
