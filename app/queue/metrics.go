package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Send attempts partitioned by delivery method and outcome
	sendAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_send_attempts_total",
			Help: "Total send attempts against delivery backends",
		},
		[]string{"method", "outcome"},
	)

	// Failovers from one backend to the other
	failoversTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_failovers_total",
			Help: "Total primary-to-fallback (or reverse) failovers",
		},
	)

	// Terminal job outcomes partitioned by queue
	jobsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_jobs_completed_total",
			Help: "Total jobs finished, by queue and terminal state",
		},
		[]string{"queue", "state"},
	)

	// Jobs pushed back for retry partitioned by queue
	jobRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_job_retries_total",
			Help: "Total job retries scheduled, by queue",
		},
		[]string{"queue"},
	)

	// Jobs written to the dead-letter table
	deadLettersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_dead_letters_total",
			Help: "Total jobs quarantined after exhausting retries",
		},
	)

	// Pacing sleep durations, to verify the randomized delay distribution
	pacingDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "delivery_pacing_delay_seconds",
			Help:    "Randomized pacing delays applied before sends",
			Buckets: []float64{1, 2, 5, 10, 15, 30, 60},
		},
		[]string{"policy"},
	)
)
