/*
 * Copyright (c) 2026, QuorumFS Authors. All rights reserved.
 */
package cluster

import (
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
)

// SeedFromDisk walks storagePath and returns every regular file found,
// each seeded at version 1. With -seed-from-disk the inventory is
// reconstructed from whatever bytes are already on disk instead of
// rebuilding empty on restart, accepting that doing so can regress a
// file's version below what some other replica already holds.
func SeedFromDisk(storagePath string) (map[string]int, error) {
	seeded := make(map[string]int)
	err := godirwalk.Walk(storagePath, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(storagePath, path)
			if err != nil {
				return err
			}
			seeded[rel] = 1
			return nil
		},
		ErrorCallback: func(_ string, err error) godirwalk.ErrorAction {
			if os.IsNotExist(err) {
				return godirwalk.SkipNode
			}
			return godirwalk.Halt
		},
	})
	if err != nil {
		return nil, err
	}
	return seeded, nil
}
