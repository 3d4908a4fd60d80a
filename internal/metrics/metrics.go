// Package metrics declares the Prometheus metrics exported by cbir.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts requests by method, route pattern and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cbir_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cbir_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	// RankingsTotal counts rankings served, labeled by method and by
	// source ("cache" for precomputed rankings, "computed" otherwise).
	RankingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cbir_rankings_total",
			Help: "Total number of rankings served",
		},
		[]string{"method", "source"},
	)

	RankingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cbir_ranking_duration_seconds",
			Help:    "Time spent computing a ranking",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"method"},
	)

	FeedbackRoundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cbir_feedback_rounds_total",
			Help: "Total number of relevance feedback rounds",
		},
		[]string{"method"},
	)

	// CorpusImages is the number of images in the loaded snapshot.
	CorpusImages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cbir_corpus_images",
			Help: "Number of images in the loaded corpus snapshot",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cbir_active_sessions",
			Help: "Number of live interaction sessions",
		},
	)

	IndexedImagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cbir_indexed_images_total",
			Help: "Total number of images processed by the indexer",
		},
		[]string{"result"},
	)
)
