// Package metrics declares the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts API requests by route, method and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selfheal_http_requests_total",
			Help: "Total number of HTTP requests handled by the ingestion server.",
		},
		[]string{"path", "method", "code"},
	)

	// ClassificationsTotal counts classifier results by error type
	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selfheal_classifications_total",
			Help: "Failure classifications produced for ingested runs.",
		},
		[]string{"error_type"},
	)

	// PatchOutcomesTotal counts patch applier outcomes
	PatchOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selfheal_patch_outcomes_total",
			Help: "Patch operations by outcome (applied, skipped, not-found).",
		},
		[]string{"result"},
	)

	// DecisionsTotal counts supervisor decisions
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selfheal_supervisor_decisions_total",
			Help: "Supervisor routing decisions.",
		},
		[]string{"decision"},
	)

	// SelectorProbesTotal counts selector audit probe results
	SelectorProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selfheal_selector_probes_total",
			Help: "Selector audit probe results by status.",
		},
		[]string{"status"},
	)

	// RunsPruned counts run directories removed by retention
	RunsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "selfheal_runs_pruned_total",
			Help: "Run log directories removed by the retention job.",
		},
	)
)
