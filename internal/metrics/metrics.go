// Package metrics exposes the Prometheus collectors one replica
// process registers: task-queue depth, quorum probe latency,
// per-operation RPC counters, and write-propagation failures. None of
// it is load-bearing for the replication core itself.
/*
 * Copyright (c) 2026, QuorumFS Authors. All rights reserved.
 */
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector one replica process registers. A nil
// *Metrics is valid everywhere it is threaded through -- callers guard
// each use so wiring metrics in is never load-bearing for correctness.
type Metrics struct {
	TaskQueueDepth  prometheus.Gauge
	QuorumLatency   *prometheus.HistogramVec
	RPCTotal        *prometheus.CounterVec
	PropagationFail prometheus.Counter
	DistinctFiles   prometheus.Gauge
}

// New registers a fresh set of collectors against the default registry.
func New() *Metrics {
	return &Metrics{
		TaskQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "quorumfs",
			Name:      "task_queue_depth",
			Help:      "Tasks admitted to the coordinator but not yet finished, including the one RUNNING.",
		}),
		QuorumLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quorumfs",
			Name:      "quorum_probe_seconds",
			Help:      "Latency of one coordinator quorum probe round, by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		RPCTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quorumfs",
			Name:      "rpc_total",
			Help:      "RPC calls served by this replica, by operation and outcome.",
		}, []string{"op", "outcome"}),
		PropagationFail: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "quorumfs",
			Name:      "propagation_failures_total",
			Help:      "finish_write copy_file directives that failed to propagate.",
		}),
		DistinctFiles: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "quorumfs",
			Name:      "list_distinct_files",
			Help:      "Distinct file names across the last cord_list_files aggregate.",
		}),
	}
}

func (m *Metrics) setQueueDepth(v float64) {
	if m == nil {
		return
	}
	m.TaskQueueDepth.Set(v)
}

// ObserveQuorumLatency records one probe round's wall-clock duration.
func (m *Metrics) ObserveQuorumLatency(op string, seconds float64) {
	if m == nil {
		return
	}
	m.QuorumLatency.WithLabelValues(op).Observe(seconds)
}

// IncRPC counts one served RPC by operation and outcome ("ok"/"error").
func (m *Metrics) IncRPC(op, outcome string) {
	if m == nil {
		return
	}
	m.RPCTotal.WithLabelValues(op, outcome).Inc()
}

// IncPropagationFailure counts one failed write-propagation copy_file.
func (m *Metrics) IncPropagationFailure() {
	if m == nil {
		return
	}
	m.PropagationFail.Inc()
}

// ObserveDistinctFiles records the deduplicated file-name count computed
// by internal/replica's cuckoo filter pass over a list_files aggregate.
func (m *Metrics) ObserveDistinctFiles(n uint32) {
	if m == nil {
		return
	}
	m.DistinctFiles.Set(float64(n))
}

// SetQueueDepth exports the admitted-but-not-finished task count
// (queued tasks plus the one RUNNING, if any).
func (m *Metrics) SetQueueDepth(v int64) { m.setQueueDepth(float64(v)) }

// Serve runs a minimal net/http server exposing /metrics, separate
// from the fasthttp-based inter-replica RPC transport so scrape
// traffic stays off the replication path.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
