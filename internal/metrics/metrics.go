// Package metrics exposes Prometheus collectors for the indexing
// pipeline and the HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScanRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "curator_scan_runs_total",
		Help: "Number of library scans started",
	})

	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "curator_scan_duration_seconds",
		Help:    "Duration of completed library scans",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	MediaProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curator_media_processed_total",
		Help: "Media items handled during scans by outcome",
	}, []string{"result"}) // ok, error, skipped

	SearchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curator_search_requests_total",
		Help: "Similarity search requests by query kind",
	}, []string{"kind"}) // media, text

	DuplicatePairs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "curator_duplicate_pairs",
		Help: "Duplicate pairs found by the most recent detection run",
	})

	ClusterRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "curator_cluster_runs_total",
		Help: "Number of face clustering runs",
	})

	ClusteredFaces = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "curator_clustered_faces",
		Help: "Faces assigned to a cluster by the most recent run",
	})
)
