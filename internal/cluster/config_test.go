/*
 * Copyright (c) 2026, QuorumFS Authors. All rights reserved.
 */
package cluster

import (
	"strings"
	"testing"
)

func TestParseBasic(t *testing.T) {
	const descriptor = `2,2
10.0.0.1,9001,1
10.0.0.2,9002,0
10.0.0.3,9003,0
`
	cfg, err := parse(strings.NewReader(descriptor), ContactInfo{IP: "10.0.0.2", Port: 9002})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.N() != 3 {
		t.Fatalf("N = %d, want 3", cfg.N())
	}
	if cfg.Role != RoleFollower {
		t.Fatalf("role = %v, want follower", cfg.Role)
	}
	if !cfg.CoordinatorContact.Equal(ContactInfo{IP: "10.0.0.1", Port: 9001}) {
		t.Fatalf("coordinator = %v", cfg.CoordinatorContact)
	}
}

func TestParseSelfIsCoordinator(t *testing.T) {
	const descriptor = `2,2
10.0.0.1,9001,1
10.0.0.2,9002,0
10.0.0.3,9003,0
`
	cfg, err := parse(strings.NewReader(descriptor), ContactInfo{IP: "10.0.0.1", Port: 9001})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Role != RoleCoordinator {
		t.Fatalf("role = %v, want coordinator", cfg.Role)
	}
}

func TestParseRejectsInvalidQuorum(t *testing.T) {
	// N=4, NR=1, NW=2: NR+NW=3 <= N=4.
	const descriptor = `1,2
10.0.0.1,9001,1
10.0.0.2,9002,0
10.0.0.3,9003,0
10.0.0.4,9004,0
`
	if _, err := parse(strings.NewReader(descriptor), ContactInfo{IP: "10.0.0.1", Port: 9001}); err == nil {
		t.Fatal("expected ConfigError for invalid quorum sizes")
	}
}

func TestParseRejectsMissingCoordinator(t *testing.T) {
	const descriptor = `2,2
10.0.0.1,9001,0
10.0.0.2,9002,0
10.0.0.3,9003,0
`
	if _, err := parse(strings.NewReader(descriptor), ContactInfo{}); err == nil {
		t.Fatal("expected ConfigError for missing coordinator line")
	}
}

func TestParseRejectsDuplicateCoordinator(t *testing.T) {
	const descriptor = `2,2
10.0.0.1,9001,1
10.0.0.2,9002,1
10.0.0.3,9003,0
`
	if _, err := parse(strings.NewReader(descriptor), ContactInfo{}); err == nil {
		t.Fatal("expected ConfigError for duplicate coordinator lines")
	}
}

func TestParseRejectsMalformedLine(t *testing.T) {
	const descriptor = `2,2
10.0.0.1,9001,1
not-a-valid-line
10.0.0.3,9003,0
`
	if _, err := parse(strings.NewReader(descriptor), ContactInfo{}); err == nil {
		t.Fatal("expected ConfigError for malformed line")
	}
}
