package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
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

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	NotificationRecipients = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_recipients_total",
			Help: "Recipients processed by the dispatcher, by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	NotificationRecipientErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_recipient_errors_total",
			Help: "Failed recipients by error code",
		},
		[]string{"error_code"},
	)

	NotificationRenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_render_duration_seconds",
			Help:    "Time spent building the HTML body for one recipient",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"source"},
	)

	NotificationSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "notification_send_duration_seconds",
			Help: "Time spent submitting one message to the mail transport",
		},
		[]string{"outcome"},
	)

	DispatchPoolInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_dispatch_in_flight",
			Help: "Recipient tasks currently holding a dispatch pool slot",
		},
	)
)
