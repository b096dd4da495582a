// Package observability exposes Prometheus metrics for the
// reconciliation engine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReconcileTotal counts pairwise reconciliation outcomes by result
	// ("matched" or "unmatched").
	ReconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quoryx",
			Name:      "reconcile_total",
			Help:      "Total pairwise reconciliation attempts by outcome",
		},
		[]string{"outcome"},
	)

	// IntercompanyPairsCreated counts pairs materialized by the detector.
	IntercompanyPairsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "quoryx",
			Name:      "intercompany_pairs_created_total",
			Help:      "Total intercompany pairs created by detection runs",
		},
	)

	// IntercompanyPairsSkipped counts pairs skipped as already existing.
	IntercompanyPairsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "quoryx",
			Name:      "intercompany_pairs_skipped_total",
			Help:      "Total intercompany pairs skipped as duplicates during detection",
		},
	)

	// PairTransitions counts intercompany status transitions by target status.
	PairTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quoryx",
			Name:      "intercompany_pair_transitions_total",
			Help:      "Total intercompany pair status transitions by target status",
		},
		[]string{"to"},
	)
)
