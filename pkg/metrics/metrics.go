package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Dispatch metrics
	DispatchOutcomes *prometheus.CounterVec
	DispatchLatency  prometheus.Histogram
	SendRetries      *prometheus.CounterVec

	// Sender metrics
	SenderLatency *prometheus.HistogramVec
	SenderErrors  *prometheus.CounterVec

	// Rate limiter metrics
	RateLimitDecisions *prometheus.CounterVec

	// Escalation metrics
	EscalationSummaries *prometheus.CounterVec
	EscalationLatency   prometheus.Histogram
	EscalationContacts  prometheus.Histogram

	// Scheduler metrics
	ScheduledDispatched prometheus.Counter
	ScheduledFailed     prometheus.Counter
	SchedulerLatency    prometheus.Histogram
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		DispatchOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatch_outcomes_total",
			Help:      "Delivery outcomes by channel and status",
		}, []string{"channel", "status"}),
		DispatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent dispatching one notification request",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		SendRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "send_retries_total",
			Help:      "Send retries by channel",
		}, []string{"channel"}),
		SenderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sender_duration_seconds",
			Help:      "Gateway call latency by channel",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"channel"}),
		SenderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sender_errors_total",
			Help:      "Gateway errors by channel",
		}, []string{"channel"}),
		RateLimitDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rate_limit_decisions_total",
			Help:      "Rate limiter decisions by result",
		}, []string{"result"}),
		EscalationSummaries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "escalation_summaries_total",
			Help:      "Crisis escalation summaries by status",
		}, []string{"status"}),
		EscalationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "escalation_duration_seconds",
			Help:      "End-to-end crisis escalation latency",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		EscalationContacts: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "escalation_contacts",
			Help:      "Contacts considered per crisis escalation",
			Buckets:   []float64{1, 2, 3, 5, 8, 13},
		}),
		ScheduledDispatched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheduled_dispatched_total",
			Help:      "Scheduled notifications handed to the dispatcher",
		}),
		ScheduledFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheduled_failed_total",
			Help:      "Scheduled notifications that could not be dispatched",
		}),
		SchedulerLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheduler_poll_duration_seconds",
			Help:      "Time spent processing one scheduler poll batch",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
	}
}
