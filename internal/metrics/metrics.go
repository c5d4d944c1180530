// Package metrics exposes Prometheus collectors for the tournament scraper.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchRequestsTotal         *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	throttleActive             *prometheus.GaugeVec
	throttleQueued             *prometheus.GaugeVec
	tournamentsTotal           *prometheus.CounterVec
	duplicatesTotal            prometheus.Counter
	geocodeLookupsTotal        *prometheus.CounterVec
	snapshotsWrittenTotal      *prometheus.CounterVec
	monthsFailedTotal          prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_fetch_requests_total",
				Help: "Total number of upstream fetches, labeled by throttle and status class.",
			},
			[]string{"throttle", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by throttle.",
			},
			[]string{"throttle"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_fetch_duration_seconds",
				Help:    "Histogram of upstream fetch latencies, labeled by throttle.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"throttle"},
		)

		throttleActive = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scraper_throttle_active",
				Help: "Number of tasks currently running inside a throttle.",
			},
			[]string{"throttle"},
		)

		throttleQueued = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scraper_throttle_queued",
				Help: "Number of tasks waiting for a throttle slot.",
			},
			[]string{"throttle"},
		)

		tournamentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_tournaments_total",
				Help: "Total number of tournaments produced, labeled by source.",
			},
			[]string{"source"},
		)

		duplicatesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_duplicates_total",
				Help: "Total number of tournaments discarded as duplicates.",
			},
		)

		geocodeLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_geocode_lookups_total",
				Help: "Total number of city lookups, labeled by the stage that answered.",
			},
			[]string{"stage"},
		)

		snapshotsWrittenTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_snapshots_written_total",
				Help: "Total number of snapshot files written, labeled by origin.",
			},
			[]string{"origin"},
		)

		monthsFailedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_months_failed_total",
				Help: "Total number of months whose ingestion failed.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// StatusClass buckets an HTTP status code as "2xx", "4xx" and so on.
// Zero means the request never produced a response.
func StatusClass(code int) string {
	if code <= 0 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one upstream fetch.
func ObserveFetch(throttle string, status int, bytesFetched int, duration time.Duration) {
	Init()
	fetchRequestsTotal.WithLabelValues(throttle, StatusClass(status)).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(throttle).Add(float64(bytesFetched))
	}
	fetchDurationSeconds.WithLabelValues(throttle).Observe(duration.Seconds())
}

// SetThrottle publishes the current occupancy of a throttle.
func SetThrottle(name string, active, queued int64) {
	Init()
	throttleActive.WithLabelValues(name).Set(float64(active))
	throttleQueued.WithLabelValues(name).Set(float64(queued))
}

// ObserveTournaments counts tournaments returned by a source.
func ObserveTournaments(source string, n int) {
	Init()
	tournamentsTotal.WithLabelValues(source).Add(float64(n))
}

// ObserveDuplicates counts discarded duplicates.
func ObserveDuplicates(n int) {
	Init()
	duplicatesTotal.Add(float64(n))
}

// ObserveGeocode counts a city lookup answered by stage.
func ObserveGeocode(stage string) {
	Init()
	geocodeLookupsTotal.WithLabelValues(stage).Inc()
}

// ObserveSnapshot counts a written snapshot. origin is "scrape" or "mirror".
func ObserveSnapshot(origin string) {
	Init()
	snapshotsWrittenTotal.WithLabelValues(origin).Inc()
}

// ObserveMonthFailed counts a month whose ingestion failed.
func ObserveMonthFailed() {
	Init()
	monthsFailedTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
