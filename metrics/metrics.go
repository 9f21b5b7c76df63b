// Package metrics exposes Prometheus metrics for aggregation runs, the result
// cache and notifications.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the namespace for all rental scraper metrics.
	Namespace = "rental"

	subsystemAdapter  = "adapter"
	subsystemCache    = "cache"
	subsystemNotifier = "notifier"
)

// Cache request results.
const (
	CacheHit     = "hit"
	CacheRefresh = "refresh"
	CacheShared  = "shared"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	AdapterRuns     *prometheus.CounterVec
	AdapterListings *prometheus.GaugeVec
	AdapterSkipped  *prometheus.CounterVec
	AdapterDuration *prometheus.HistogramVec

	SnapshotListings prometheus.Gauge
	RefreshDuration  prometheus.Histogram
	LastRefresh      prometheus.Gauge
	CacheRequests    *prometheus.CounterVec

	NewListings   prometheus.Counter
	Notifications *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors with reg, or with the
// default registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	m := &Metrics{}

	m.initAdapterMetrics(factory)
	m.initCacheMetrics(factory)
	m.initNotifierMetrics(factory)

	return m
}

func (m *Metrics) initAdapterMetrics(factory promauto.Factory) {
	m.AdapterRuns = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemAdapter,
			Name:      "runs_total",
			Help:      "Total adapter runs by agency and status",
		},
		[]string{"agency", "status"},
	)

	m.AdapterListings = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: subsystemAdapter,
			Name:      "listings",
			Help:      "Listings produced by the last run of each adapter",
		},
		[]string{"agency"},
	)

	m.AdapterSkipped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemAdapter,
			Name:      "skipped_listings_total",
			Help:      "Listings skipped after detail and index extraction both failed",
		},
		[]string{"agency"},
	)

	m.AdapterDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: subsystemAdapter,
			Name:      "duration_seconds",
			Help:      "Duration of one adapter run in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4min
		},
		[]string{"agency"},
	)
}

func (m *Metrics) initCacheMetrics(factory promauto.Factory) {
	m.SnapshotListings = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: subsystemCache,
			Name:      "snapshot_listings",
			Help:      "Listings in the current snapshot",
		},
	)

	m.RefreshDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: subsystemCache,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a full aggregation run in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8.5min
		},
	)

	m.LastRefresh = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: subsystemCache,
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time of the last completed refresh",
		},
	)

	m.CacheRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemCache,
			Name:      "requests_total",
			Help:      "Cache requests by result (hit, refresh, shared)",
		},
		[]string{"result"},
	)
}

func (m *Metrics) initNotifierMetrics(factory promauto.Factory) {
	m.NewListings = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemNotifier,
			Name:      "new_listings_total",
			Help:      "Listings detected as new since the previous snapshot",
		},
	)

	m.Notifications = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemNotifier,
			Name:      "deliveries_total",
			Help:      "Notification deliveries by status",
		},
		[]string{"status"},
	)
}

// RecordAdapter records the outcome of one adapter run.
func (m *Metrics) RecordAdapter(agency string, succeeded bool, listings, skipped int, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !succeeded {
		status = "failure"
	}
	m.AdapterRuns.WithLabelValues(agency, status).Inc()
	m.AdapterListings.WithLabelValues(agency).Set(float64(listings))
	if skipped > 0 {
		m.AdapterSkipped.WithLabelValues(agency).Add(float64(skipped))
	}
	m.AdapterDuration.WithLabelValues(agency).Observe(d.Seconds())
}

// RecordRefresh records a completed aggregation run.
func (m *Metrics) RecordRefresh(listings int, d time.Duration, at time.Time) {
	if m == nil {
		return
	}
	m.SnapshotListings.Set(float64(listings))
	m.RefreshDuration.Observe(d.Seconds())
	m.LastRefresh.Set(float64(at.Unix()))
}

// RecordCacheRequest counts one cache request by result.
func (m *Metrics) RecordCacheRequest(result string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(result).Inc()
}

// RecordDispatch records one notification batch.
func (m *Metrics) RecordDispatch(newListings, delivered, failed int) {
	if m == nil {
		return
	}
	m.NewListings.Add(float64(newListings))
	m.Notifications.WithLabelValues("delivered").Add(float64(delivered))
	m.Notifications.WithLabelValues("failed").Add(float64(failed))
}
