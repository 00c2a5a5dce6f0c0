package admission

import "github.com/prometheus/client_golang/prometheus"

var (
	admitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "job_admissions_total",
		Help: "Job submissions admitted by the rate limiter.",
	})

	// denials counts rejected submissions by the check that failed.
	denials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_admission_denials_total",
			Help: "Job submissions rejected by the rate limiter.",
		},
		[]string{"reason"},
	)

	refunds = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "job_admission_refunds_total",
		Help: "Admissions handed back because no job was created.",
	})
)

func init() {
	prometheus.MustRegister(admitted, denials, refunds)
}
