package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RequestMetrics instruments HTTP traffic with Prometheus counters and
// latency histograms.
type RequestMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRequestMetrics registers the request metrics on the default registry.
func NewRequestMetrics() *RequestMetrics {
	return &RequestMetrics{
		requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentshare_http_requests_total",
			Help: "HTTP requests processed, labelled by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "consentshare_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~2s
		}, []string{"method", "route"}),
	}
}

// Middleware records one observation per request.
func (m *RequestMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := routeLabel(r.URL.Path)
		m.requests.WithLabelValues(r.Method, route, http.StatusText(rec.status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// routeLabel collapses path parameters so metric cardinality stays bounded by
// the route table, not by the ID space.
func routeLabel(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "/"
	}

	switch segments[0] {
	case "aggregates":
		return "/aggregates/:party"
	case "individuals":
		if len(segments) == 1 {
			return "/individuals"
		}
		if last := segments[len(segments)-1]; len(segments) > 2 && (last == "consents" || last == "audit") {
			return "/individuals/:id/" + last
		}
		return "/individuals/:id"
	default:
		return "/" + segments[0]
	}
}
