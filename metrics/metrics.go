// Package metrics holds the Prometheus collectors for credit accounting.
// Collectors register on the default registry; the API serves them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "creative_boost"

// LedgerMutations counts client month writes by operation (add, remove, update).
var LedgerMutations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "ledger_mutations_total",
	Help:      "Client month ledger writes by operation.",
}, []string{"operation"})

// OutputUpdates counts output log upserts by outcome (created, updated, deleted, skipped).
var OutputUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "output_updates_total",
	Help:      "Output log upserts by outcome.",
}, []string{"outcome"})

// SettingsChanges counts audit rows appended, by change type.
var SettingsChanges = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "settings_changes_total",
	Help:      "Settings change audit rows appended.",
}, []string{"change_type"})

// SyncRows counts engagement sync results (created, linked, skipped).
var SyncRows = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "engagement_sync_rows_total",
	Help:      "Ledger rows handled by the engagement sync.",
}, []string{"result"})

// SummaryCacheLookups counts memoised aggregation lookups (hit, miss).
var SummaryCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "summary_cache_lookups_total",
	Help:      "Summary aggregation cache lookups.",
}, []string{"result"})
