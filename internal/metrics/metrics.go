// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups the collectors of the service. A nil *Registry is valid
// and records nothing.
type Registry struct {
	gatherer prometheus.Gatherer

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	BlacklistSwept      prometheus.Counter
	BlacklistErrors     *prometheus.CounterVec
	AuthRejections      *prometheus.CounterVec
	ActNumberRetries    prometheus.Counter
}

// NewRegistry creates the collectors and registers them on a fresh
// prometheus registry together with the Go and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		gatherer: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
		BlacklistSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "token_blacklist_swept_total",
			Help: "Blacklist entries removed by the expiry sweep",
		}),
		BlacklistErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_blacklist_errors_total",
				Help: "Blacklist operations that failed",
			},
			[]string{"op"},
		),
		AuthRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_rejections_total",
				Help: "Requests rejected by authentication, by reason",
			},
			[]string{"reason"},
		),
		ActNumberRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "act_number_retries_total",
			Help: "Act creations retried after a name collision",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.HTTPRequestsTotal,
		r.HTTPRequestDuration,
		r.BlacklistSwept,
		r.BlacklistErrors,
		r.AuthRejections,
		r.ActNumberRetries,
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

func (r *Registry) ObserveSweep(removed int) {
	if r == nil {
		return
	}
	r.BlacklistSwept.Add(float64(removed))
}

func (r *Registry) BlacklistError(op string) {
	if r == nil {
		return
	}
	r.BlacklistErrors.WithLabelValues(op).Inc()
}

func (r *Registry) AuthRejected(reason string) {
	if r == nil {
		return
	}
	r.AuthRejections.WithLabelValues(reason).Inc()
}

func (r *Registry) ActRetry() {
	if r == nil {
		return
	}
	r.ActNumberRetries.Inc()
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency labelled by the matched
// chi route pattern rather than the raw path.
func (r *Registry) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, req)

		route := "unmatched"
		if rc := chi.RouteContext(req.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		r.HTTPRequestsTotal.WithLabelValues(req.Method, route, strconv.Itoa(sw.status)).Inc()
		r.HTTPRequestDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
	})
}
