package metrics

import "github.com/prometheus/client_golang/prometheus"

// Race cache metrics, refreshed by the escrow audit
var (
	RaceCacheLookups = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "race_cache_lookups",
		Help:      "Race cache lookups since start by result",
	}, []string{"result"})
	RaceCacheHitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "race_cache_hit_ratio",
		Help:      "Fraction of race cache lookups served from the cache",
	})
	RaceCacheItems = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "race_cache_items",
		Help:      "Number of entries held by the race cache",
	})
)

// UpdateCacheGauges publishes the race cache statistics
func UpdateCacheGauges(hits, misses uint64, ratio float64, items int) {
	RaceCacheLookups.WithLabelValues("hit").Set(float64(hits))
	RaceCacheLookups.WithLabelValues("miss").Set(float64(misses))
	RaceCacheHitRatio.Set(ratio)
	RaceCacheItems.Set(float64(items))
}
