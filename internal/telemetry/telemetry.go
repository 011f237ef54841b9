package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orion_http_requests_total",
		Help: "HTTP requests handled by the console, by route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orion_http_request_duration_seconds",
		Help:    "HTTP request latency, by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	pdsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orion_pds_requests_total",
		Help: "Admin API calls made against the PDS, by operation and outcome.",
	}, []string{"operation", "outcome"})

	auditEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orion_audit_events_total",
		Help: "Audit log events recorded, by event type.",
	}, []string{"event"})

	bootstrapSteps = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orion_bootstrap_step_duration_seconds",
		Help:    "Duration of bootstrap steps, by step and outcome.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{"step", "outcome"})
)

// Handler returns the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTP records one handled HTTP request.
func ObserveHTTP(method, route, status string, duration time.Duration) {
	httpRequests.WithLabelValues(method, route, status).Inc()
	httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObservePDS records one PDS admin API call.
func ObservePDS(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	pdsRequests.WithLabelValues(operation, outcome).Inc()
}

// ObserveAudit records one audit log event.
func ObserveAudit(event string) {
	auditEvents.WithLabelValues(event).Inc()
}

// ObserveBootstrapStep records one bootstrap step run.
func ObserveBootstrapStep(step string, err error, duration time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	bootstrapSteps.WithLabelValues(step, outcome).Observe(duration.Seconds())
}
