package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HeatmapCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "avimap_heatmap_cache_hits_total",
			Help: "Heatmap requests served from the asset cache",
		},
	)

	HeatmapCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "avimap_heatmap_cache_misses_total",
			Help: "Heatmap requests that required generation",
		},
	)

	HeatmapGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avimap_heatmap_generations_total",
			Help: "Heatmap generation attempts by outcome",
		},
		[]string{"status"},
	)

	HeatmapGenerationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "avimap_heatmap_generation_seconds",
			Help:    "Heatmap render-and-persist latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	NearbyProbes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "avimap_nearby_date_probes_total",
			Help: "Date probes issued by the nearby-date resolver",
		},
	)

	GBIFAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avimap_gbif_api_calls_total",
			Help: "Total GBIF occurrence API calls",
		},
		[]string{"status"},
	)

	GBIFAPILatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "avimap_gbif_api_latency_seconds",
			Help:    "GBIF API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	OccurrencesImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avimap_occurrences_imported_total",
			Help: "Occurrence rows successfully imported",
		},
		[]string{"source"},
	)
)
