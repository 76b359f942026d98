package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dhs_cache_hits_total",
			Help: "Number of cache hits, labeled by serving tier (volatile or persistent).",
		},
		[]string{"tier"},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dhs_cache_misses_total",
			Help: "Number of cache reads that missed both tiers.",
		},
	)

	CacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dhs_cache_evictions_total",
			Help: "Number of volatile entries evicted on expiry (lazy read checks and sweeps).",
		},
	)

	CacheInvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dhs_cache_invalidations_total",
			Help: "Number of cache keys explicitly invalidated after mutating operations.",
		},
	)

	GatewayAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dhs_gateway_attempts_total",
			Help: "Number of upstream request attempts, including retries.",
		},
	)

	GatewayRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dhs_gateway_retries_total",
			Help: "Number of upstream attempts that were retries of a failed attempt.",
		},
	)

	GatewayFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dhs_gateway_failures_total",
			Help: "Number of upstream requests that exhausted all attempts without a response.",
		},
	)

	CoalescerSharedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dhs_coalescer_shared_total",
			Help: "Number of callers served from an already in-flight coalesced request.",
		},
	)
)

// IncrementCacheHit records a cache hit served by the given tier.
func IncrementCacheHit(tier string) {
	CacheHitsTotal.WithLabelValues(tier).Inc()
}

// IncrementCacheMiss records a read that missed both tiers.
func IncrementCacheMiss() {
	CacheMissesTotal.Inc()
}

// AddCacheEvictions records expired entries removed from the volatile tier.
func AddCacheEvictions(n int) {
	CacheEvictionsTotal.Add(float64(n))
}

// AddCacheInvalidations records keys dropped by explicit invalidation.
func AddCacheInvalidations(n int) {
	CacheInvalidationsTotal.Add(float64(n))
}
