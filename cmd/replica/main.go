// Command replica runs one quorumfs cluster member: it loads the
// static cluster descriptor, brings up the local inventory and RPC
// surface, and -- on the statically elected coordinator only -- the
// serialization and quorum engine.
/*
 * Copyright (c) 2026, QuorumFS Authors. All rights reserved.
 */
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quorumfs/quorumfs/internal/cluster"
	"github.com/quorumfs/quorumfs/internal/config"
	"github.com/quorumfs/quorumfs/internal/coordinator"
	"github.com/quorumfs/quorumfs/internal/inventory"
	"github.com/quorumfs/quorumfs/internal/metrics"
	"github.com/quorumfs/quorumfs/internal/qlog"
	"github.com/quorumfs/quorumfs/internal/replica"
	"github.com/quorumfs/quorumfs/internal/rpc"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		qlog.Errorf("replica: %v", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("replica", flag.ContinueOnError)
	proc, err := config.Parse(fs, args)
	if err != nil {
		return err
	}
	qlog.SetDebug(proc.Debug)

	self := cluster.ContactInfo{IP: proc.IP, Port: proc.Port}
	cfg, err := cluster.Load(proc.Cluster, self)
	if err != nil {
		// A bad descriptor must make the process exit non-zero, never
		// start serving.
		return fmt.Errorf("loading cluster descriptor: %w", err)
	}
	qlog.Infof("replica: %s role=%s N=%d NR=%d NW=%d", self, cfg.Role, cfg.N(), cfg.NR, cfg.NW)

	inv, err := inventory.Open(proc.Storage, proc.Persist)
	if err != nil {
		return fmt.Errorf("opening inventory: %w", err)
	}
	defer inv.Close()

	if proc.SeedDisk {
		seeded, err := cluster.SeedFromDisk(proc.Storage)
		if err != nil {
			return fmt.Errorf("seeding inventory from disk: %w", err)
		}
		if err := inv.Seed(seeded); err != nil {
			return fmt.Errorf("installing seeded inventory: %w", err)
		}
		qlog.Infof("replica: seeded %d files from %s", len(seeded), proc.Storage)
	}

	mtr := metrics.New()
	client := rpc.NewClient(proc.RPCTimeout)

	var coord *coordinator.Coordinator
	if cfg.Role == cluster.RoleCoordinator {
		coord = coordinator.New(cfg, client, rand.New(rand.NewSource(time.Now().UnixNano())),
			proc.WatchdogTimeout, proc.ProbeTimeout, mtr)
	}

	r := replica.New(cfg, inv, client, coord, mtr)
	srv := rpc.NewServer(r, mtr)

	if proc.Metrics != "" {
		go func() {
			if err := metrics.Serve(proc.Metrics); err != nil {
				qlog.Warnf("replica: metrics server: %v", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(fmt.Sprintf("%s:%d", proc.IP, proc.Port)) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		qlog.Infof("replica: received %s, shutting down", sig)
		return nil
	}
}
