package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MetadataLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worldstrat_metadata_loads_total",
			Help: "Total metadata file reads by format and result",
		},
		[]string{"format", "result"},
	)

	MetadataLoadLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worldstrat_metadata_load_latency_seconds",
			Help:    "Metadata file read and parse latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"format"},
	)

	LoadCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worldstrat_load_cache_lookups_total",
			Help: "Load memo lookups by result (hit, miss, stale)",
		},
		[]string{"result"},
	)

	RenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "worldstrat_render_duration_seconds",
			Help:    "Duration of one dashboard render pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	RenderWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worldstrat_render_warnings_total",
			Help: "Non-fatal conditions surfaced during render passes",
		},
		[]string{"kind"},
	)

	ImageLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worldstrat_image_lookups_total",
			Help: "Tile image lookups by slot and outcome",
		},
		[]string{"slot", "outcome"},
	)
)
