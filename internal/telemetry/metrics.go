package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики jobpilot. Регистрируются в default registry и отдаются
// через promhttp.Handler() на /metrics.
var (
	JobsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobpilot_jobs_dispatched_total",
		Help: "Executor instances created for jobs (including local retries)",
	})

	JobsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobpilot_jobs_finalized_total",
		Help: "Terminal job transitions by outcome",
	}, []string{"outcome"})

	LocalRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobpilot_local_retries_total",
		Help: "Executor crash retries performed without contacting the queue",
	})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jobpilot_active_jobs",
		Help: "Jobs currently tracked in the active registry",
	})

	QueueRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobpilot_queue_requests_total",
		Help: "Queue API calls by operation and result",
	}, []string{"operation", "result"})

	QueueRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jobpilot_queue_request_duration_seconds",
		Help:    "Queue API call latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	PollTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobpilot_poll_ticks_total",
		Help: "Poll scheduler ticks by result",
	}, []string{"result"})

	ConsumedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobpilot_amqp_messages_consumed_total",
		Help: "AMQP messages consumed by queue, message type and settlement",
	}, []string{"queue", "type", "result"})
)
