// Package config parses the process-level flags cmd/replica runs
// with: everything outside the cluster descriptor itself. A thin
// flag.FlagSet wrapper.
/*
 * Copyright (c) 2026, QuorumFS Authors. All rights reserved.
 */
package config

import (
	"flag"
	"fmt"
	"time"
)

// Process holds every flag cmd/replica accepts.
type Process struct {
	IP       string
	Port     int
	Storage  string
	Cluster  string
	Debug    bool
	Metrics  string
	Persist  string
	SeedDisk bool

	RPCTimeout      time.Duration
	ProbeTimeout    time.Duration
	WatchdogTimeout time.Duration
}

// Parse parses args (normally os.Args[1:]) into a Process, applying
// the same defaults a production quorumfs deployment would ship with.
func Parse(fs *flag.FlagSet, args []string) (*Process, error) {
	p := &Process{}
	fs.StringVar(&p.IP, "ip", "127.0.0.1", "this replica's advertised IP")
	fs.IntVar(&p.Port, "port", 9001, "this replica's listen port")
	fs.StringVar(&p.Storage, "storage", "./data", "directory holding this replica's file bytes")
	fs.StringVar(&p.Cluster, "config", "compute_nodes.txt", "cluster descriptor path (NR,NW header then ip,port,role lines)")
	fs.BoolVar(&p.Debug, "debug", false, "enable qlog.Debugf tracing")
	fs.StringVar(&p.Metrics, "metrics-addr", "", "address to serve /metrics on (empty disables)")
	fs.StringVar(&p.Persist, "persist", "", "path for a durable inventory index (empty = in-memory, rebuilds empty on restart)")
	fs.BoolVar(&p.SeedDisk, "seed-from-disk", false, "seed inventory by scanning -storage at startup instead of starting empty")
	fs.DurationVar(&p.RPCTimeout, "rpc-timeout", 2*time.Second, "outbound RPC connect/read timeout")
	fs.DurationVar(&p.ProbeTimeout, "probe-timeout", 2*time.Second, "per-peer quorum probe timeout")
	fs.DurationVar(&p.WatchdogTimeout, "watchdog-timeout", 30*time.Second, "coordinator force-release timeout for a stalled ticket")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if p.Port <= 0 {
		return nil, fmt.Errorf("-port must be positive, got %d", p.Port)
	}
	return p, nil
}
