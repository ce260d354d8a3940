// Package metrics defines the Prometheus collectors for ingestion, logo
// resolution, status probes and the HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion metrics
var (
	IngestFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radiovault_ingest_files_total",
			Help: "Playlist files seen by the ingestion orchestrator, by result",
		},
		[]string{"result"}, // "ingested", "unclassified", "excluded", "failed"
	)

	IngestStationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radiovault_ingest_stations_total",
			Help: "Station entries merged into the catalog",
		},
	)

	IngestMalformedEntries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radiovault_ingest_malformed_entries_total",
			Help: "Playlist entries skipped because they were malformed",
		},
	)
)

// Logo resolution metrics
var (
	LogoResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radiovault_logo_resolutions_total",
			Help: "Logo resolution outcomes, by stage and terminal state",
		},
		[]string{"stage", "state"},
	)

	LogoStrategyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "radiovault_logo_strategy_duration_seconds",
			Help:    "Time spent in a single logo strategy attempt",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
		[]string{"stage"},
	)

	SweepRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radiovault_logo_sweep_runs_total",
			Help: "Completed bulk logo sweeps",
		},
	)
)

// Probe metrics
var (
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radiovault_probes_total",
			Help: "Stream status probes, by result",
		},
		[]string{"status"},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radiovault_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "radiovault_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)
