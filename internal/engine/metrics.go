package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	savesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reportline_saves_total",
		Help: "Report saves by outcome (ok, validation, not_found, error).",
	}, []string{"outcome"})

	saveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reportline_save_duration_seconds",
		Help:    "Duration of report saves including the canonical read.",
		Buckets: prometheus.DefBuckets,
	})

	approverChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reportline_approver_changes_total",
		Help: "Approver row mutations by action.",
	}, []string{"action"})

	statusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reportline_status_transitions_total",
		Help: "Derived report status transitions by target status.",
	}, []string{"to"})

	prunedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reportline_pruned_total",
		Help: "Goals and objectives deleted by orphan pruning.",
	}, []string{"kind"})
)
