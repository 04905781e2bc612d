// Package coordinator implements the coordinator-only side of the
// replication protocol: sequential task admission (ticket.go) and
// per-task quorum selection (quorum.go). It lives only on the replica
// whose role is RoleCoordinator; internal/replica constructs one
// Coordinator at startup and routes InsertJob/FinishRead/FinishWrite
// to it instead of over the wire.
/*
 * Copyright (c) 2026, QuorumFS Authors. All rights reserved.
 */
package coordinator

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quorumfs/quorumfs/internal/cluster"
	"github.com/quorumfs/quorumfs/internal/metrics"
	"github.com/quorumfs/quorumfs/internal/qerrors"
	"github.com/quorumfs/quorumfs/internal/qlog"
	"github.com/quorumfs/quorumfs/internal/rpc"
)

// Request and Response are the coordinator-facing names for the wire
// types insert_job exchanges; they are the same structs internal/rpc
// puts on the wire, not a copy, so no translation happens at the
// replica/coordinator boundary.
type Request = rpc.Request
type Response = rpc.Response

// PeerClient is the subset of internal/rpc.Client the coordinator needs
// to probe quorum members and direct write propagation. Defined here so
// this package has no dependency on the transport implementation beyond
// the wire types above.
type PeerClient interface {
	GetVersion(ctx context.Context, peer cluster.ContactInfo, name string) (int, error)
	CopyFile(ctx context.Context, peer cluster.ContactInfo, version int, name string, src cluster.ContactInfo) error
}

// activeTask is the per-ticket bookkeeping a Coordinator holds from
// the moment a task starts running until finish_read/finish_write (or
// the watchdog) releases it. released is a one-shot gate: whichever of
// the normal finish path or the watchdog gets there first performs the
// release, so the lock is freed exactly once per ticket.
type activeTask struct {
	ticket   int64
	released int32
	timer    *time.Timer
}

// Coordinator serializes every read/write task in ticket order and
// runs the quorum engine for each. Lock split:
//   - queueMu guards taskAssigned/taskProcessing and the gates map.
//   - coordLock is the binary mutex held from dispatch until the
//     matching finish call.
//   - stateMu guards chosenServers/active, since the goroutine that
//     calls InsertJob for a ticket is not the goroutine that later
//     calls FinishRead/FinishWrite for the same ticket.
//
// Admission uses ticket-indexed gate channels rather than a spin loop;
// ticket order equals execution order either way.
type Coordinator struct {
	cfg    *cluster.Config
	client PeerClient
	mtr    *metrics.Metrics

	watchdogTimeout time.Duration
	probeTimeout    time.Duration

	queueMu        sync.Mutex
	taskAssigned   int64
	taskProcessing int64
	gates          map[int64]chan struct{}

	coordLock sync.Mutex

	stateMu       sync.Mutex
	chosenServers []cluster.ContactInfo
	active        *activeTask

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New builds a Coordinator over cfg's server list. rng is injectable
// so tests can assert specific peer selections deterministically; pass
// nil to seed from the wall clock.
func New(cfg *cluster.Config, client PeerClient, rng *rand.Rand, watchdogTimeout, probeTimeout time.Duration, mtr *metrics.Metrics) *Coordinator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Coordinator{
		cfg:             cfg,
		client:          client,
		mtr:             mtr,
		watchdogTimeout: watchdogTimeout,
		probeTimeout:    probeTimeout,
		gates:           make(map[int64]chan struct{}),
		rng:             rng,
	}
}

// InsertJob is the entry point for every read/write request. It
// assigns a ticket, blocks until that ticket's turn and coordLock are
// both held, dispatches to the read or write quorum engine, and
// returns the Response without releasing coordLock -- the critical
// section only ends when the caller (the follower that issued the
// read/write) later invokes FinishRead or FinishWrite for the same
// ticket.
func (co *Coordinator) InsertJob(ctx context.Context, req Request) (Response, error) {
	ticket := co.assignTicket()
	qlog.Debugf("coordinator: ticket %d admitted (%s %s)", ticket, req.Type, req.Filename)
	co.admit(ticket)

	co.coordLock.Lock()
	qlog.Debugf("coordinator: ticket %d RUNNING (%s %s)", ticket, req.Type, req.Filename)

	task := &activeTask{ticket: ticket}
	task.timer = time.AfterFunc(co.watchdogTimeout, func() { co.watchdogFire(task) })
	co.stateMu.Lock()
	co.active = task
	co.stateMu.Unlock()

	var (
		resp Response
		err  error
	)
	start := time.Now()
	switch req.Type {
	case rpc.TypeRead:
		resp, err = co.cordQuorum(ctx, task, req.Filename, co.cfg.NR)
	case rpc.TypeWrite:
		resp, err = co.cordQuorum(ctx, task, req.Filename, co.cfg.NW)
	default:
		err = qerrors.NewProtocolError("insert_job: unknown request type "+req.Type, nil)
	}
	co.mtr.ObserveQuorumLatency(req.Type, time.Since(start).Seconds())

	if err != nil {
		// The follower that issued this request will never see a valid
		// Response and so will never call finish_*; release now so the
		// next ticket is not stalled behind a task that failed to
		// dispatch.
		co.release(task, err)
		return Response{}, err
	}
	resp.Ticket = ticket
	return resp, nil
}

// FinishRead advances the processing counter, releases coordLock, and
// nulls chosenServers. No other side effects. The finish is scoped to
// ticket: if that ticket is no longer the active task (the watchdog
// already force-released it and a later ticket now holds the lock),
// the call is a no-op so a stale finish can never release someone
// else's critical section.
func (co *Coordinator) FinishRead(ticket int64) error {
	task := co.taskForTicket(ticket)
	if task == nil {
		qlog.Warnf("coordinator: finish_read for ticket %d ignored (not the active task)", ticket)
		return nil
	}
	co.release(task, nil)
	return nil
}

// FinishWrite directs every chosen peer other than origin to pull the
// new content from src, then releases coordLock exactly as FinishRead
// does. A failed directive is logged and counted; the remaining peers
// are still attempted and the lock is released normally. Like
// FinishRead, the finish is ticket-scoped: a stale finish (the
// watchdog got there first) neither propagates nor releases.
func (co *Coordinator) FinishWrite(ctx context.Context, ticket int64, version int, name string, src, origin cluster.ContactInfo) error {
	task := co.taskForTicket(ticket)
	if task == nil {
		qlog.Warnf("coordinator: finish_write for ticket %d ignored (not the active task)", ticket)
		return nil
	}

	co.stateMu.Lock()
	chosen := append([]cluster.ContactInfo(nil), co.chosenServers...)
	co.stateMu.Unlock()

	var wg sync.WaitGroup
	for _, peer := range chosen {
		if peer.Equal(origin) {
			continue
		}
		wg.Add(1)
		go func(peer cluster.ContactInfo) {
			defer wg.Done()
			if err := co.client.CopyFile(ctx, peer, version, name, src); err != nil {
				qlog.Warnf("coordinator: ticket %d propagate %s to %s: %v", task.ticket, name, peer, err)
				co.mtr.IncPropagationFailure()
			}
		}(peer)
	}
	wg.Wait()

	co.release(task, nil)
	return nil
}

// assignTicket increments taskAssigned under queueMu and returns the
// ticket just handed out.
func (co *Coordinator) assignTicket() int64 {
	co.queueMu.Lock()
	defer co.queueMu.Unlock()
	ticket := co.taskAssigned
	co.taskAssigned++
	co.mtr.SetQueueDepth(co.taskAssigned - co.taskProcessing)
	return ticket
}

// admit blocks the calling goroutine until taskProcessing == ticket,
// i.e. until it is this ticket's turn to attempt coordLock.
func (co *Coordinator) admit(ticket int64) {
	co.queueMu.Lock()
	if co.taskProcessing == ticket {
		co.queueMu.Unlock()
		return
	}
	ch := make(chan struct{})
	co.gates[ticket] = ch
	co.queueMu.Unlock()
	<-ch
}

// advance increments taskProcessing and wakes whichever ticket is
// waiting on the gate for the new value, if any.
func (co *Coordinator) advance() {
	co.queueMu.Lock()
	co.taskProcessing++
	next := co.taskProcessing
	ch, ok := co.gates[next]
	if ok {
		delete(co.gates, next)
	}
	co.mtr.SetQueueDepth(co.taskAssigned - co.taskProcessing)
	co.queueMu.Unlock()
	if ok {
		close(ch)
	}
}

// taskForTicket returns the active task iff it carries the given
// ticket. A released CAS on the returned task still decides the
// winner if the watchdog fires concurrently.
func (co *Coordinator) taskForTicket(ticket int64) *activeTask {
	co.stateMu.Lock()
	defer co.stateMu.Unlock()
	if co.active == nil || co.active.ticket != ticket {
		return nil
	}
	return co.active
}

// release is idempotent: exactly one of the normal finish_* path or
// the watchdog performs the actual unlock/advance, chosen by a CAS on
// released, so every ticket frees the lock exactly once even under a
// crashed initiator.
func (co *Coordinator) release(task *activeTask, cause error) {
	if !atomic.CompareAndSwapInt32(&task.released, 0, 1) {
		return
	}
	if task.timer != nil {
		task.timer.Stop()
	}
	co.stateMu.Lock()
	co.chosenServers = nil
	if co.active == task {
		co.active = nil
	}
	co.stateMu.Unlock()

	co.coordLock.Unlock()
	co.advance()

	if cause != nil {
		qlog.Errorf("coordinator: ticket %d force-released: %v", task.ticket, cause)
	} else {
		qlog.Debugf("coordinator: ticket %d DONE", task.ticket)
	}
}

// watchdogFire force-releases a task whose initiator never called
// finish_read/finish_write within watchdogTimeout, so a crashed
// initiator cannot stall the cluster behind a held coordLock.
func (co *Coordinator) watchdogFire(task *activeTask) {
	co.release(task, qerrors.NewQuorumError(task.ticket, "watchdog: no finish_* within timeout", nil))
}

func newProbeGroup(ctx context.Context) (*errgroup.Group, context.Context) {
	return errgroup.WithContext(ctx)
}
