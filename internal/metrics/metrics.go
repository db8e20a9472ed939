// Package metrics provides Prometheus metrics for the unzipd service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "unzipd"
)

// Operation metrics track extraction and cleanup jobs.
var (
	// OperationsTotal is the total number of operations started, by kind.
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Total number of operations started",
	}, []string{"kind"})

	// OperationsActive is the number of operations currently running.
	OperationsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "operations_active",
		Help:      "Number of operations currently running",
	})

	// OperationDuration is a histogram of operation duration in seconds.
	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Duration of operations in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~409s
	}, []string{"kind"})
)

// Archive metrics track per-archive outcomes.
var (
	// ArchivesTotal is the total number of archives processed, by outcome.
	ArchivesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "archives_total",
		Help:      "Total number of archives processed",
	}, []string{"outcome"})

	// ExtractedFilesTotal is the total number of files extracted.
	ExtractedFilesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extracted_files_total",
		Help:      "Total number of files extracted",
	})

	// ExtractedBytesTotal is the total number of bytes extracted.
	ExtractedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extracted_bytes_total",
		Help:      "Total number of bytes extracted",
	})

	// ExtractionDuration is a histogram of per-archive extraction duration.
	ExtractionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "extraction_duration_seconds",
		Help:      "Duration of single-archive extraction in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	})

	// RejectionsTotal is the total number of archives rejected by validation.
	RejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rejections_total",
		Help:      "Total number of archives rejected by validation",
	}, []string{"reason"})
)

// Cleanup metrics track archive deletion.
var (
	// CleanupDeletedTotal is the total number of archives deleted by cleanup.
	CleanupDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cleanup_deleted_total",
		Help:      "Total number of archives deleted by cleanup",
	})

	// CleanupFreedBytesTotal is the total archive bytes reclaimed by cleanup.
	CleanupFreedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cleanup_freed_bytes_total",
		Help:      "Total archive bytes reclaimed by cleanup",
	})
)

// Watcher metrics track filesystem monitoring.
var (
	// WatcherEventsTotal is the total number of filesystem events.
	WatcherEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "watcher_events_total",
		Help:      "Total number of filesystem events",
	}, []string{"type"})

	// WatcherTriggersTotal is the total number of extractions triggered by the watcher.
	WatcherTriggersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "watcher_triggers_total",
		Help:      "Total number of extractions triggered by the watcher",
	})
)

// Server metrics track daemon health and uptime.
var (
	// ServerInfo provides version and build information.
	ServerInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "server_info",
		Help:      "Server version and build information",
	}, []string{"version", "go_version"})

	// ServerStartTime is the unix timestamp when the server started.
	ServerStartTime = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "server_start_time_seconds",
		Help:      "Unix timestamp when the server started",
	})

	// RateLimitedTotal is the total number of requests rejected by rate limiting.
	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Total number of requests rejected by rate limiting",
	})
)

// Handler returns an HTTP handler serving the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
