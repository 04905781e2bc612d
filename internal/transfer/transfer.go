// Package transfer implements the chunked file pull: fetching a named
// file from a peer replica in fixed 2048-byte chunks and atomically
// replacing the local copy.
/*
 * Copyright (c) 2026, QuorumFS Authors. All rights reserved.
 */
package transfer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/quorumfs/quorumfs/internal/cluster"
	"github.com/quorumfs/quorumfs/internal/inventory"
	"github.com/quorumfs/quorumfs/internal/qerrors"
	"github.com/quorumfs/quorumfs/internal/qlog"
)

// ChunkSize is fixed and compiled in.
const ChunkSize = 2048

// PeerClient is the subset of the RPC client CopyFile needs: fetching
// a remote file's size and reading one chunk of it. Defined here
// (rather than imported from internal/rpc) so this package has no
// dependency on the transport implementation.
type PeerClient interface {
	GetFileSize(ctx context.Context, peer cluster.ContactInfo, name string) (int64, error)
	RequestData(ctx context.Context, peer cluster.ContactInfo, name string, offset, size int64) ([]byte, error)
}

// CopyFile pulls name from peer in ChunkSize chunks, writes it into a
// temp file under inv's storage path, fsyncs and atomically renames it
// over the destination only on full success, and then records version
// in the inventory. A transport failure mid-transfer discards the temp
// file and leaves the inventory untouched; the caller gets
// *qerrors.TransferError. Smaller trailing chunks at EOF are expected
// and not an error.
func CopyFile(ctx context.Context, inv *inventory.Inventory, peer cluster.ContactInfo, client PeerClient, version int, name string) error {
	size, err := client.GetFileSize(ctx, peer, name)
	if err != nil {
		return qerrors.NewTransferError(name, fmt.Errorf("get-file-size from %s: %w", peer, err))
	}

	dst := filepath.Join(inv.StoragePath(), name)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return qerrors.NewTransferError(name, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".qfs-pull-*")
	if err != nil {
		return qerrors.NewTransferError(name, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if ferr := pullChunks(ctx, tmp, peer, client, name, size); ferr != nil {
		tmp.Close()
		return qerrors.NewTransferError(name, ferr)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return qerrors.NewTransferError(name, err)
	}
	if err := unix.Fsync(int(tmp.Fd())); err != nil {
		qlog.Debugf("transfer: fsync %s: %v (continuing, file.Sync already ran)", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return qerrors.NewTransferError(name, err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return qerrors.NewTransferError(name, err)
	}

	inv.UpdateFileMetadata(name, version)
	return nil
}

func pullChunks(ctx context.Context, tmp *os.File, peer cluster.ContactInfo, client PeerClient, name string, size int64) error {
	for offset := int64(0); offset < size; offset += ChunkSize {
		chunk, err := client.RequestData(ctx, peer, name, offset, ChunkSize)
		if err != nil {
			return fmt.Errorf("request-data at offset %d: %w", offset, err)
		}
		if _, err := tmp.Write(chunk); err != nil {
			return fmt.Errorf("writing chunk at offset %d: %w", offset, err)
		}
		if len(chunk) == 0 {
			// peer reports a size but has nothing left to give; stop
			// rather than spin forever at the same offset.
			break
		}
	}
	return nil
}
