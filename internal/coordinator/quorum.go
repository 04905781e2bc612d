/*
 * Copyright (c) 2026, QuorumFS Authors. All rights reserved.
 */
package coordinator

import (
	"context"
	"fmt"

	"github.com/quorumfs/quorumfs/internal/cluster"
	"github.com/quorumfs/quorumfs/internal/qerrors"
)

// cordQuorum is the shared body of cord_read_file and
// cord_write_file: select n peers uniformly at random without
// replacement (the coordinator itself eligible), probe each for its
// current version of name, and return the version/peer believed
// freshest. Ties go to the first-polled peer in selection order; an
// empty quorum (nobody has the file) returns Response{0, nil}.
func (co *Coordinator) cordQuorum(ctx context.Context, task *activeTask, name string, n int) (Response, error) {
	peers := co.selectPeers(n)

	co.stateMu.Lock()
	co.chosenServers = peers
	co.stateMu.Unlock()

	versions := make([]int, len(peers))
	g, gctx := newProbeGroup(ctx)
	for i, peer := range peers {
		i, peer := i, peer
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, co.probeTimeout)
			defer cancel()
			v, err := co.client.GetVersion(cctx, peer, name)
			if err != nil {
				return qerrors.NewQuorumError(task.ticket, fmt.Sprintf("probing %s for %s", peer, name), err)
			}
			versions[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Response{}, err
	}

	best, bestVersion := -1, 0
	for i, v := range versions {
		if v > bestVersion {
			bestVersion = v
			best = i
		}
	}
	if best == -1 {
		return Response{Version: 0}, nil
	}
	winner := peers[best]
	return Response{Version: bestVersion, Contact: &winner}, nil
}

// selectPeers draws n distinct peers from the server list uniformly at
// random without replacement. Selection is per-task: distinct tasks
// may choose overlapping or disjoint sets.
func (co *Coordinator) selectPeers(n int) []cluster.ContactInfo {
	co.rngMu.Lock()
	defer co.rngMu.Unlock()

	all := co.cfg.ServerList
	if n > len(all) {
		n = len(all)
	}
	perm := co.rng.Perm(len(all))
	out := make([]cluster.ContactInfo, n)
	for i := 0; i < n; i++ {
		out[i] = all[perm[i]]
	}
	return out
}
