// Package metrics defines the Prometheus instrumentation for Argus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AlertsAnalyzed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_alerts_analyzed_total",
			Help: "Total number of alerts run through the inference engine",
		},
		[]string{"severity"},
	)

	IncidentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_incidents_created_total",
			Help: "Total number of incidents created",
		},
		[]string{"conclusion"},
	)

	RulesFired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_rules_fired_total",
			Help: "Total number of rule firings across all inference runs",
		},
	)

	RulesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_rules_skipped_total",
			Help: "Total number of rules skipped for missing conditions",
		},
	)

	FactsExtracted = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "argus_facts_extracted",
			Help:    "Number of facts derived per alert",
			Buckets: []float64{0, 2, 5, 10, 20, 40, 80},
		},
	)

	InferenceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "argus_inference_duration_seconds",
			Help:    "Time taken for one full analyze pass (extract + infer + persist)",
			Buckets: prometheus.DefBuckets,
		},
	)

	ExplainCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_explain_cache_hits_total",
			Help: "Trace cache hits while serving explain queries",
		},
	)

	ExplainCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_explain_cache_misses_total",
			Help: "Trace cache misses while serving explain queries",
		},
	)
)
