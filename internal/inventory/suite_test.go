/*
 * Copyright (c) 2026, QuorumFS Authors. All rights reserved.
 */
package inventory_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestInventorySuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Inventory Suite")
}
