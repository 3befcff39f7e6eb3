// Package metrics exposes Prometheus instrumentation for the storage
// layer. Counters are registered on the default registry and served by the
// serve-metrics command.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SafeReadRetries counts validation failures that triggered a re-read of a
// market snapshot.
var SafeReadRetries = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "marketstore_safe_read_retries_total",
		Help: "Market snapshot reads retried after a validation failure",
	},
)

// WriteFailures counts atomic snapshot writes the store did not acknowledge.
var WriteFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "marketstore_snapshot_write_failures_total",
		Help: "Atomic market snapshot writes rejected by the store",
	},
)

// CASConflicts counts optimistic-update commits that lost the race and
// were retried.
var CASConflicts = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "marketstore_trade_cas_conflicts_total",
		Help: "Trade record compare-and-swap commits that hit a version conflict",
	},
)

// IntegrityFaults counts detected index/payload inconsistencies and
// partially-applied batches.
var IntegrityFaults = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "marketstore_ledger_integrity_faults_total",
		Help: "Ledger integrity violations detected (dangling indexes, partial batches)",
	},
)

// SnapshotsPruned counts degenerate market snapshots removed by the
// deletion validator.
var SnapshotsPruned = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "marketstore_snapshots_pruned_total",
		Help: "Market snapshots deleted because critical fields were null or zero",
	},
)

func init() {
	prometheus.MustRegister(SafeReadRetries, WriteFailures, CASConflicts, IntegrityFaults, SnapshotsPruned)
}
