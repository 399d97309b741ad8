// Package metrics holds the Prometheus collectors of the back office.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// JobRunsTotal counts finished job runs by job and status.
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadops_job_runs_total",
			Help: "Finished job runs by job and status.",
		},
		[]string{"job", "status"},
	)

	// JobDurationSeconds observes how long job runs take.
	JobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadops_job_duration_seconds",
			Help:    "Job run duration.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17min
		},
		[]string{"job"},
	)

	// RowsProcessedTotal counts rows a job read, scored or wrote.
	RowsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadops_rows_processed_total",
			Help: "Rows processed by job.",
		},
		[]string{"job"},
	)

	// CurrentJobs is the number of job runs in progress in this process.
	CurrentJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadops_current_jobs",
			Help: "Job runs in progress.",
		},
	)

	// PostbacksTotal counts purchase postbacks by outcome.
	PostbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadops_postbacks_total",
			Help: "Purchase postbacks by outcome (sent, failed, dead_lettered, replayed).",
		},
		[]string{"outcome"},
	)

	// DeadLetterDepth is the last observed number of stored dead letters.
	DeadLetterDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "leadops_dead_letters",
			Help: "Stored dead letters by kind.",
		},
		[]string{"kind"},
	)

	// LastSuccessTimestamp is the completion time of the last successful run.
	LastSuccessTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "leadops_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run by job.",
		},
		[]string{"job"},
	)

	// HTTPRequestsTotal counts API requests by route and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadops_http_requests_total",
			Help: "API requests by route and status.",
		},
		[]string{"route", "code"},
	)
)

// ObserveRun records a finished run.
func ObserveRun(job, status string, rows int64, d time.Duration) {
	JobRunsTotal.WithLabelValues(job, status).Inc()
	JobDurationSeconds.WithLabelValues(job).Observe(d.Seconds())
	if rows > 0 {
		RowsProcessedTotal.WithLabelValues(job).Add(float64(rows))
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
