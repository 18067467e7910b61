// Package metrics holds the Prometheus collectors of the server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "env_manager"

var (
	// httpRequests counts API requests.
	// Labels: method, route (chi route pattern), status (HTTP status code)
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	// httpDuration measures API request latency.
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// activations counts group activations by outcome.
	// Labels: status (success, forbidden, not_found, failed)
	activations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "switch",
		Name:      "activations_total",
		Help:      "Group activations by outcome",
	}, []string{"status"})

	// variableWrites counts writes to the live environment.
	// Labels: scope (user, system), op (set, delete), result (ok, forbidden, error)
	variableWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "env",
		Name:      "writes_total",
		Help:      "Live environment writes by scope and result",
	}, []string{"scope", "op", "result"})
)

// RecordRequest records one served HTTP request.
func RecordRequest(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordActivation records the outcome of an activation.
func RecordActivation(status string) {
	activations.WithLabelValues(status).Inc()
}

// RecordVariableWrite records a write to the live environment.
func RecordVariableWrite(scope, op, result string) {
	variableWrites.WithLabelValues(scope, op, result).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
