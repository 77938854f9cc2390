// Package metrics exposes the dashboard's Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"norloworld/internal/core"
	"norloworld/internal/snapshot"
)

type Collector struct {
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	SnapshotRefreshes *prometheus.CounterVec
	SnapshotDuration  prometheus.Histogram
	SnapshotRecords   prometheus.Gauge
	SnapshotVersion   prometheus.Gauge

	Submissions *prometheus.CounterVec
	Syncs       *prometheus.CounterVec
	StatsQuery  *prometheus.CounterVec
}

func NewCollector() *Collector {
	return &Collector{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "incidents_http_requests_total",
				Help: "Total number of HTTP requests by route and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "incidents_http_request_duration_seconds",
				Help:    "HTTP request latency by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		SnapshotRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "incidents_snapshot_refreshes_total",
				Help: "Total number of snapshot refresh attempts by result.",
			},
			[]string{"result"},
		),
		SnapshotDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "incidents_snapshot_refresh_duration_seconds",
				Help:    "Time taken to fetch a snapshot.",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		SnapshotRecords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "incidents_snapshot_records",
				Help: "Number of incident records in the current snapshot.",
			},
		),
		SnapshotVersion: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "incidents_snapshot_version",
				Help: "Version of the current snapshot.",
			},
		),
		Submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "incidents_submissions_total",
				Help: "Total number of incident submissions by mode and result.",
			},
			[]string{"mode", "result"},
		),
		Syncs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "incidents_sheet_syncs_total",
				Help: "Total number of incident appends to the spreadsheet by result.",
			},
			[]string{"result"},
		),
		StatsQuery: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "incidents_stats_queries_total",
				Help: "Total number of stats queries by outcome.",
			},
			[]string{"outcome"},
		),
	}
}

func (c *Collector) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.SnapshotRefreshes,
		c.SnapshotDuration,
		c.SnapshotRecords,
		c.SnapshotVersion,
		c.Submissions,
		c.Syncs,
		c.StatsQuery,
	)
}

// CacheStats is implemented by the caches whose hit rate is exported.
type CacheStats interface {
	Stats() (hits, misses uint64)
	Size() int
}

// RegisterCache exports hit, miss and size figures for a named cache.
func RegisterCache(reg prometheus.Registerer, name string, c CacheStats) {
	labels := prometheus.Labels{"cache": name}
	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "incidents_cache_hits_total",
			Help:        "Cache hits.",
			ConstLabels: labels,
		}, func() float64 { h, _ := c.Stats(); return float64(h) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "incidents_cache_misses_total",
			Help:        "Cache misses.",
			ConstLabels: labels,
		}, func() float64 { _, m := c.Stats(); return float64(m) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "incidents_cache_entries",
			Help:        "Entries currently cached.",
			ConstLabels: labels,
		}, func() float64 { return float64(c.Size()) }),
	)
}

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(method, route string, status int, took time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

// ObserveRefresh matches snapshot.Store.OnRefresh.
func (c *Collector) ObserveRefresh(s *snapshot.Snapshot, err error, took time.Duration) {
	c.SnapshotDuration.Observe(took.Seconds())
	if err != nil {
		c.SnapshotRefreshes.WithLabelValues("error").Inc()
		return
	}
	c.SnapshotRefreshes.WithLabelValues("ok").Inc()
	c.SnapshotRecords.Set(float64(len(s.Records)))
	c.SnapshotVersion.Set(float64(s.Version))
}

// ObserveSubmission records an accepted or rejected report.
func (c *Collector) ObserveSubmission(queued bool, err error) {
	mode := "direct"
	if queued {
		mode = "queued"
	}
	result := "ok"
	if err != nil {
		result = "error"
		if code := core.ErrorCode(err); code != "" {
			result = code
		}
	}
	c.Submissions.WithLabelValues(mode, result).Inc()
}

// ObserveSync matches worker.SyncWorker.OnSync.
func (c *Collector) ObserveSync(_ string, err error) {
	if err != nil {
		c.Syncs.WithLabelValues("error").Inc()
		return
	}
	c.Syncs.WithLabelValues("ok").Inc()
}

// ObserveStats records a stats query outcome: "ok" or the error code.
func (c *Collector) ObserveStats(err error) {
	outcome := "ok"
	if err != nil {
		outcome = core.ErrorCode(err)
		if outcome == "" {
			outcome = "error"
		}
	}
	c.StatsQuery.WithLabelValues(outcome).Inc()
}
