package jobs

import "github.com/prometheus/client_golang/prometheus"

var (
	// transitions counts jobs entering each state.
	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_transitions_total",
			Help: "Jobs entering a lifecycle state.",
		},
		[]string{"state"},
	)

	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "jobs_queue_depth",
		Help: "Jobs waiting for a worker.",
	})

	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobs_run_duration_seconds",
			Help:    "Wall time of job runs by kind.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)

	evictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobs_evicted_total",
		Help: "Terminal jobs dropped to respect the job count cap.",
	})
)

func init() {
	prometheus.MustRegister(transitions, queueDepth, runDuration, evictions)
}
