// Package metrics exposes Prometheus counters for the HTTP API.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"medfollow/pkg"
)

var (
	classifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medfollow_classifications_total",
			Help: "Symptom classifications by category and severity",
		},
		[]string{"category", "severity"},
	)

	vitalsAnalyses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medfollow_vitals_total",
			Help: "Vitals analyses by computed severity",
		},
		[]string{"severity"},
	)

	guidanceSource = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medfollow_guidance_source_total",
			Help: "Guidance replies by producing backend",
		},
		[]string{"source"},
	)

	logAppendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medfollow_log_append_failures_total",
			Help: "Failed log appends by record kind",
		},
		[]string{"kind"},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medfollow_http_requests_total",
			Help: "HTTP requests by method, route pattern and status",
		},
		[]string{"method", "route", "status"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordGuidance counts a chat guidance result.
func RecordGuidance(r pkg.GuidanceResult) {
	classifications.WithLabelValues(string(r.Category), string(r.Severity)).Inc()
	guidanceSource.WithLabelValues(r.Source).Inc()
}

// RecordVitals counts a vitals analysis.
func RecordVitals(severity pkg.Severity) {
	vitalsAnalyses.WithLabelValues(string(severity)).Inc()
}

// RecordLogAppendFailure counts a failed append.
func RecordLogAppendFailure(kind pkg.RecordKind) {
	logAppendFailures.WithLabelValues(string(kind)).Inc()
}

// Middleware counts requests by their chi route pattern so path parameters
// do not create new series.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
	})
}

// responseWriter captures the status code.  It forwards Flush so server-sent
// event streams keep working behind the middleware.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
