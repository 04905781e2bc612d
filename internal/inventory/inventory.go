// Package inventory tracks a replica's local file->version mapping
// and serves the byte-level reads the chunked transfer path depends
// on. The version index is backed by an embedded tidwall/buntdb
// database rather than a bare map, so inventory can optionally persist
// across restarts (see Open's persistPath); file bytes always live on
// the filesystem under storagePath and are never duplicated into the
// index.
/*
 * Copyright (c) 2026, QuorumFS Authors. All rights reserved.
 */
package inventory

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tidwall/buntdb"

	"github.com/quorumfs/quorumfs/internal/qerrors"
)

// Inventory is the in-process view of one replica's stored files.
type Inventory struct {
	db          *buntdb.DB
	storagePath string
}

// Open creates (or opens) the inventory index. When persistPath is
// empty the index lives purely in memory and rebuilds as empty on
// every restart. A non-empty persistPath makes the version index
// durable across restarts.
func Open(storagePath, persistPath string) (*Inventory, error) {
	if err := os.MkdirAll(storagePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage path: %w", err)
	}
	dsn := ":memory:"
	if persistPath != "" {
		dsn = persistPath
	}
	db, err := buntdb.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("opening inventory index: %w", err)
	}
	return &Inventory{db: db, storagePath: storagePath}, nil
}

func (inv *Inventory) Close() error { return inv.db.Close() }

// GetVersion returns the stored version for name, or 0 if unknown.
func (inv *Inventory) GetVersion(name string) int {
	var version int
	_ = inv.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(name)
		if err != nil {
			return nil // ErrNotFound -> version stays 0
		}
		fmt.Sscanf(val, "%d", &version)
		return nil
	})
	return version
}

// UpdateFileMetadata sets the inventory entry for name to version if
// absent, or if version is strictly greater than the stored value;
// otherwise it leaves the entry unchanged. Versions in the inventory
// never decrease through this path.
func (inv *Inventory) UpdateFileMetadata(name string, version int) {
	_ = inv.db.Update(func(tx *buntdb.Tx) error {
		existing := 0
		if val, err := tx.Get(name); err == nil {
			fmt.Sscanf(val, "%d", &existing)
		}
		if version > existing {
			_, _, err := tx.Set(name, fmt.Sprintf("%d", version), nil)
			return err
		}
		return nil
	})
}

// GetFileSize returns the byte count of name under storagePath, or
// *qerrors.NotFound if the file does not exist.
func (inv *Inventory) GetFileSize(name string) (int64, error) {
	fi, err := os.Stat(filepath.Join(inv.storagePath, name))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, &qerrors.NotFound{Name: name}
		}
		return 0, err
	}
	return fi.Size(), nil
}

// RequestData reads up to size bytes of name starting at offset. If
// offset is at or past EOF it returns an empty slice; if fewer than
// size bytes remain it returns what is available. Never an error for
// a short read at EOF -- only for an unreadable file.
func (inv *Inventory) RequestData(name string, offset, size int64) ([]byte, error) {
	f, err := os.Open(filepath.Join(inv.storagePath, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &qerrors.NotFound{Name: name}
		}
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

// FileInfo is one (name, version) inventory entry.
type FileInfo struct {
	Name    string
	Version int
}

// GetAllFiles returns a snapshot copy of the inventory.
func (inv *Inventory) GetAllFiles() []FileInfo {
	var out []FileInfo
	_ = inv.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("", func(key, val string) bool {
			var v int
			fmt.Sscanf(val, "%d", &v)
			out = append(out, FileInfo{Name: key, Version: v})
			return true
		})
	})
	return out
}

// StoragePath returns the directory holding this inventory's file
// bytes, so callers (e.g. a local write) can build the on-disk path.
func (inv *Inventory) StoragePath() string { return inv.storagePath }

// Seed installs the given name->version pairs without enforcing the
// never-decreases rule UpdateFileMetadata applies -- used once at
// startup by -seed-from-disk (see internal/cluster.SeedFromDisk),
// which may regress a version relative to what some other replica
// holds.
func (inv *Inventory) Seed(files map[string]int) error {
	return inv.db.Update(func(tx *buntdb.Tx) error {
		for name, version := range files {
			if _, _, err := tx.Set(name, fmt.Sprintf("%d", version), nil); err != nil {
				return err
			}
		}
		return nil
	})
}
