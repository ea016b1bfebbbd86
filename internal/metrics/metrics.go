package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TasksCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasktrack_tasks_created_total",
			Help: "Total number of tasks created by priority.",
		},
		[]string{"priority"},
	)

	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasktrack_transitions_total",
			Help: "Total number of task status transitions by target status.",
		},
		[]string{"status"},
	)

	UpdateRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tasktrack_update_requests_total",
			Help: "Total number of update requests sent to assignees.",
		},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasktrack_notifications_total",
			Help: "Total number of notifications emitted by event kind.",
		},
		[]string{"kind"},
	)

	SuggestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasktrack_suggestions_total",
			Help: "Total number of text suggestion calls by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	SessionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tasktrack_sessions_expired_total",
			Help: "Total number of expired sessions removed by the janitor.",
		},
	)
)

// Register registers all tasktrack metrics with reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		TasksCreatedTotal,
		TransitionsTotal,
		UpdateRequestsTotal,
		NotificationsTotal,
		SuggestionsTotal,
		SessionsExpiredTotal,
	)
}
