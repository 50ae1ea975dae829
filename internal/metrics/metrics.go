// Package metrics provides Prometheus metrics for the collection
// tracker. Scrape these at /metrics for dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cta_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cta_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Snapshot Cache Metrics
	SnapshotFetchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cta_snapshot_fetches_total",
			Help: "Total number of full collection snapshot fetches",
		},
	)

	SnapshotCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cta_snapshot_cache_hits_total",
			Help: "Snapshot reads served from the in-memory cache",
		},
	)

	SnapshotCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cta_snapshot_cache_misses_total",
			Help: "Snapshot reads that required a backend fetch",
		},
	)

	SnapshotInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cta_snapshot_invalidations_total",
			Help: "Snapshot invalidations triggered by mutations",
		},
	)

	// Mutation Metrics
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cta_collection_mutations_total",
			Help: "Collection mutations by operation and result status",
		},
		[]string{"operation", "status"},
	)

	// Catalog Metrics
	CatalogRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cta_catalog_requests_total",
			Help: "Card catalog API requests by result",
		},
		[]string{"result"}, // "success" or "failed"
	)

	CatalogBatchChunks = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cta_catalog_batch_chunks",
			Help:    "Number of chunks issued per batched card lookup",
			Buckets: []float64{1, 2, 3, 5, 10, 20},
		},
	)

	CatalogCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cta_catalog_cache_hits_total",
			Help: "Card detail lookups served from the LRU cache",
		},
	)

	CatalogCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cta_catalog_cache_misses_total",
			Help: "Card detail lookups that went to the catalog API",
		},
	)

	// Collection Metrics
	CollectionItemsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cta_collection_items_total",
			Help: "Total number of collection item rows",
		},
	)

	CollectionValueUSD = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cta_collection_value_usd",
			Help: "Total estimated value of all collections in USD",
		},
	)

	// Sharing Metrics
	ActiveShares = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cta_active_shares",
			Help: "Number of unexpired, unrevoked share links",
		},
	)

	ShareViewsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cta_share_views_total",
			Help: "Total shared collection views recorded",
		},
	)

	// Presence Metrics
	PresenceHeartbeats = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cta_presence_heartbeats_total",
			Help: "Presence heartbeats received",
		},
	)
)
