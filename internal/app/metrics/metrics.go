package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scan outcomes used as the result label.
const (
	ScanCredited  = "credited"
	ScanDuplicate = "duplicate"
	ScanRejected  = "rejected"
	ScanFailed    = "error"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "loyalty_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loyalty_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "loyalty_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	scans = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loyalty_layer",
			Subsystem: "scans",
			Name:      "processed_total",
			Help:      "Scan submissions by outcome.",
		},
		[]string{"result"},
	)

	scanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "loyalty_layer",
			Subsystem: "scans",
			Name:      "duration_seconds",
			Help:      "Time spent processing a scan submission.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"result"},
	)

	pointsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loyalty_layer",
			Subsystem: "scans",
			Name:      "points_awarded_total",
			Help:      "Points credited, by store.",
		},
		[]string{"store_id"},
	)

	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "loyalty_layer",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		scans,
		scanDuration,
		pointsAwarded,
		rateLimited,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// IncInFlight and DecInFlight track concurrently served requests.
func IncInFlight() { httpInFlight.Inc() }

func DecInFlight() { httpInFlight.Dec() }

// RecordHTTPRequest records one served request. path should be the route
// template so label cardinality stays bounded.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if path == "" {
		path = "unmatched"
	}
	method = strings.ToUpper(method)
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordScan records the outcome of a scan submission.
func RecordScan(result, storeID string, points int64, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	scans.WithLabelValues(result).Inc()
	scanDuration.WithLabelValues(result).Observe(duration.Seconds())
	if result == ScanCredited && points > 0 {
		if storeID == "" {
			storeID = "unknown"
		}
		pointsAwarded.WithLabelValues(storeID).Add(float64(points))
	}
}

// RecordRateLimited counts a throttled request.
func RecordRateLimited() { rateLimited.Inc() }
