// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage labels.
const (
	StageDerive   = "derive-queries"
	StageSearch   = "search-fanout"
	StageFilter   = "filter-links"
	StageFetch    = "fetch-content"
	StageAssemble = "assemble-context"
	StageGenerate = "generate-answer"
)

var (
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "context_pipeline_runs_total",
			Help: "Total number of context pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "context_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, .75, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	StageItems = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "context_stage_items",
			Help:    "Number of items produced by each pipeline stage",
			Buckets: prometheus.LinearBuckets(0, 2, 11),
		},
		[]string{"stage"},
	)

	SoftFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "context_soft_failures_total",
			Help: "Failures dropped without aborting the pipeline",
		},
		[]string{"stage", "error_code"},
	)

	FetchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "context_fetch_outcomes_total",
			Help: "Per-link fetch outcomes",
		},
		[]string{"outcome"},
	)

	SearchCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "context_search_cache_lookups_total",
			Help: "Search cache lookups by result",
		},
		[]string{"result"},
	)

	ContextLength = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "context_assembled_chars",
			Help:    "Length in characters of assembled context strings",
			Buckets: prometheus.ExponentialBuckets(500, 2, 8),
		},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)
)
