package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	IndexingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codegraph_indexing_seconds",
		Help:    "Time spent indexing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "codegraph_graph_nodes_total",
		Help: "Total number of nodes in the dependency graph.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "codegraph_graph_edges_total",
		Help: "Total number of edges in the dependency graph.",
	})

	GraphIssues = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "codegraph_graph_issues_total",
		Help: "Total number of structural issues in the current issue set.",
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codegraph_analysis_seconds",
		Help:    "Time spent on analyzer passes.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codegraph_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	IncrementalApplyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codegraph_incremental_apply_total",
		Help: "Total number of incremental graph updates applied, by event kind.",
	}, []string{"kind"})

	IndexErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codegraph_index_errors_total",
		Help: "Total number of per-file indexing failures.",
	})

	QueryCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codegraph_query_cache_hits_total",
		Help: "Total number of query cache hits.",
	})

	QueryCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codegraph_query_cache_misses_total",
		Help: "Total number of query cache misses.",
	})

	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codegraph_query_seconds",
		Help:    "Latency of graph query operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)
