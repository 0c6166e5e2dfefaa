package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	jobsSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "esgqa_jobs_submitted_total",
			Help: "Total number of question jobs submitted.",
		},
	)

	jobTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esgqa_job_transitions_total",
			Help: "Total number of job status transitions, by target status.",
		},
		[]string{"status"},
	)

	wsSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "esgqa_ws_subscribers",
			Help: "Number of identities with a registered push connection.",
		},
	)
)

func init() {
	prometheus.MustRegister(jobsSubmittedTotal)
	prometheus.MustRegister(jobTransitionsTotal)
	prometheus.MustRegister(wsSubscribers)
}
