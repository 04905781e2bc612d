/*
 * Copyright (c) 2026, QuorumFS Authors. All rights reserved.
 */
package inventory_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/quorumfs/quorumfs/internal/inventory"
)

var _ = Describe("Inventory", func() {
	var (
		inv *inventory.Inventory
		dir string
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "qfs-inventory-spec-")
		Expect(err).NotTo(HaveOccurred())
		inv, err = inventory.Open(dir, "")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(inv.Close()).To(Succeed())
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	Describe("version bookkeeping", func() {
		It("reports version 0 for a name it has never seen", func() {
			Expect(inv.GetVersion("never-seen")).To(Equal(0))
		})

		It("never lets a lower version overwrite a higher one", func() {
			inv.UpdateFileMetadata("hello.txt", 4)
			inv.UpdateFileMetadata("hello.txt", 2)
			Expect(inv.GetVersion("hello.txt")).To(Equal(4))
		})

		It("creates an entry on first write", func() {
			inv.UpdateFileMetadata("new.txt", 1)
			Expect(inv.GetAllFiles()).To(ContainElement(inventory.FileInfo{Name: "new.txt", Version: 1}))
		})
	})

	Describe("chunked reads", func() {
		It("returns the requested window of bytes", func() {
			Expect(os.WriteFile(filepath.Join(dir, "data.bin"), []byte("0123456789"), 0o644)).To(Succeed())
			got, err := inv.RequestData("data.bin", 2, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(got)).To(Equal("2345"))
		})

		It("returns an empty slice once offset passes EOF", func() {
			Expect(os.WriteFile(filepath.Join(dir, "tiny.bin"), []byte("ab"), 0o644)).To(Succeed())
			got, err := inv.RequestData("tiny.bin", 50, 2048)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeEmpty())
		})
	})
})
