// Package metrics provides Prometheus collectors for sync runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the namespace for all bridge metrics.
	Namespace = "qiita_bridge"
)

// Upsert result labels.
const (
	ResultCreated = "created"
	ResultUpdated = "updated"
	ResultFailed  = "failed"
)

// Metrics holds all Prometheus metrics for the sync pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Fetch metrics
	ItemsFetchedTotal  prometheus.Counter
	ItemsSelectedTotal prometheus.Counter
	PagesFetchedTotal  prometheus.Counter

	// Sync metrics
	UpsertsTotal *prometheus.CounterVec
	RetriesTotal prometheus.Counter

	// Run metrics
	RunsTotal              *prometheus.CounterVec
	RunDurationSeconds     prometheus.Histogram
	LastSuccessTimestamp   prometheus.Gauge
	NotificationsSentTotal prometheus.Counter
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.ItemsFetchedTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "fetch",
		Name:      "items_total",
		Help:      "Total number of Qiita items returned by the API",
	})
	m.ItemsSelectedTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "fetch",
		Name:      "items_selected_total",
		Help:      "Total number of items that passed the popularity threshold",
	})
	m.PagesFetchedTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "fetch",
		Name:      "pages_total",
		Help:      "Total number of item pages requested",
	})

	m.UpsertsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "notion",
			Name:      "upserts_total",
			Help:      "Total number of page upserts by result",
		},
		[]string{"result"},
	)
	m.RetriesTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "notion",
		Name:      "retries_total",
		Help:      "Total number of rate-limited upsert attempts that were retried",
	})

	m.RunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "job",
			Name:      "runs_total",
			Help:      "Total number of sync runs by status",
		},
		[]string{"status"},
	)
	m.RunDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "job",
		Name:      "run_duration_seconds",
		Help:      "Duration of sync runs in seconds",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
	})
	m.LastSuccessTimestamp = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "job",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful run",
	})
	m.NotificationsSentTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "job",
		Name:      "notifications_total",
		Help:      "Total number of highlight notifications sent",
	})

	return m
}

// RecordPage counts one fetched page with n items.
func (m *Metrics) RecordPage(n int) {
	if m == nil {
		return
	}
	m.PagesFetchedTotal.Inc()
	m.ItemsFetchedTotal.Add(float64(n))
}

// RecordSelected counts items kept after filtering.
func (m *Metrics) RecordSelected(n int) {
	if m == nil {
		return
	}
	m.ItemsSelectedTotal.Add(float64(n))
}

// RecordUpsert counts one upsert outcome.
func (m *Metrics) RecordUpsert(result string) {
	if m == nil {
		return
	}
	m.UpsertsTotal.WithLabelValues(result).Inc()
}

// RecordRetry counts one retried attempt.
func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(status string, started, finished time.Time) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDurationSeconds.Observe(finished.Sub(started).Seconds())
	if status != "failure" {
		m.LastSuccessTimestamp.Set(float64(finished.Unix()))
	}
}

// RecordNotification counts one sent digest.
func (m *Metrics) RecordNotification() {
	if m == nil {
		return
	}
	m.NotificationsSentTotal.Inc()
}
