package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SchedulerRunningTasks = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "torrentstream",
		Name:      "scheduler_running_tasks",
		Help:      "Number of tasks currently running, by tag.",
	}, []string{"tag"})

	SchedulerPendingTasks = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "torrentstream",
		Name:      "scheduler_pending_tasks",
		Help:      "Number of tasks awaiting promotion, by tag.",
	}, []string{"tag"})

	SchedulerTaskOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "torrentstream",
		Name:      "scheduler_task_outcomes_total",
		Help:      "Total tasks that left RUNNING, by tag and outcome (done, error, paused).",
	}, []string{"tag", "outcome"})

	GatewayCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "torrentstream",
		Name:      "gateway_calls_total",
		Help:      "Total remote drive gateway calls, by operation and outcome.",
	}, []string{"operation", "outcome"})

	GatewayCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "torrentstream",
		Name:      "gateway_call_duration_seconds",
		Help:      "Remote drive gateway call duration in seconds, by operation.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"operation"})

	DownloaderCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "torrentstream",
		Name:      "downloader_calls_total",
		Help:      "Total local downloader calls, by operation and outcome.",
	}, []string{"operation", "outcome"})

	VFSRefreshesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "torrentstream",
		Name:      "vfs_refreshes_total",
		Help:      "Total VFS node refreshes, by kind (directory, file).",
	}, []string{"kind"})
)

// Register registers every package-level collector with reg. Call once at
// startup, typically with prometheus.DefaultRegisterer.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		SchedulerRunningTasks,
		SchedulerPendingTasks,
		SchedulerTaskOutcomesTotal,
		GatewayCallsTotal,
		GatewayCallDuration,
		DownloaderCallsTotal,
		VFSRefreshesTotal,
	)
}
