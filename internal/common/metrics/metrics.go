package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	MessagesParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_messages_parsed_total",
			Help: "User messages parsed, by resulting intent",
		},
		[]string{"intent"},
	)

	ResponsesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_responses_generated_total",
			Help: "Responses generated, by intent",
		},
		[]string{"intent"},
	)

	RemoteFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_remote_fallbacks_total",
			Help: "Remote model calls that fell back to the local rules",
		},
		[]string{"component"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_cache_lookups_total",
			Help: "Intent cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)

// ObserveJob records the outcome of one worker job. errorCode is empty on
// success.
func ObserveJob(taskType, errorCode string, seconds float64) {
	WorkerJobDuration.WithLabelValues(taskType).Observe(seconds)
	if errorCode == "" {
		WorkerJobsCompleted.WithLabelValues(taskType).Inc()
		return
	}
	WorkerJobsFailed.WithLabelValues(taskType, errorCode).Inc()
}
