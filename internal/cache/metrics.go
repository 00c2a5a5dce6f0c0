package cache

import "github.com/prometheus/client_golang/prometheus"

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "artifact_cache_hits_total",
		Help: "Artifact cache lookups served without generation.",
	})

	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "artifact_cache_misses_total",
		Help: "Artifact cache lookups that started a generation.",
	})

	// cacheGenerations counts finished generations by result ("ok"/"error").
	cacheGenerations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_cache_generations_total",
			Help: "Generations run on behalf of the artifact cache.",
		},
		[]string{"result"},
	)

	cacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "artifact_cache_evictions_total",
		Help: "Entries evicted by the capacity policy.",
	})

	cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "artifact_cache_entries",
		Help: "Entries currently held in memory.",
	})
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMisses, cacheGenerations, cacheEvictions, cacheEntries)
}
